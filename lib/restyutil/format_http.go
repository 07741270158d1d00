package restyutil

import (
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-resty/resty/v2"
)

// maxDumpBody caps each body in a dump, pages can be megabytes of markup.
const maxDumpBody = 64 * 1024

func writeHeaders(out *strings.Builder, headers http.Header) {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		for _, v := range headers[k] {
			fmt.Fprintf(out, "%s: %s\n", k, v)
		}
	}
}

func writeBody(out *strings.Builder, body string) {
	if len(body) > maxDumpBody {
		fmt.Fprintf(out, "%s\n[truncated %d bytes]\n", body[:maxDumpBody], len(body)-maxDumpBody)
		return
	}
	out.WriteString(body)
	out.WriteString("\n")
}

func requestBody(req *http.Request) string {
	if req == nil || req.GetBody == nil {
		return ""
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Sprintf("[unreadable body: %s]", err)
	}
	defer body.Close()
	contents, err := io.ReadAll(body)
	if err != nil {
		return fmt.Sprintf("[unreadable body: %s]", err)
	}
	return string(contents)
}

// formatHttpMessage renders one exchange of a page load: the request as sent,
// then the response with the address it was finally served from.
func formatHttpMessage(res *resty.Response) string {
	var out strings.Builder

	fmt.Fprintf(&out, "> %s %s\n", res.Request.Method, res.Request.URL)
	if res.Request.RawRequest != nil {
		writeHeaders(&out, res.Request.RawRequest.Header)
	}
	if body := requestBody(res.Request.RawRequest); body != "" {
		out.WriteString("\n")
		writeBody(&out, body)
	}

	served := res.Request.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		served = res.RawResponse.Request.URL.String()
	}
	fmt.Fprintf(&out, "\n< %s %s (%s)\n", res.Status(), served, res.Time())
	writeHeaders(&out, res.Header())
	out.WriteString("\n")
	writeBody(&out, res.String())

	return out.String()
}
