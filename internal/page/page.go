// Package page describes the rendering surface a job navigates and reads from.
//
// Implementations hold exactly one live document at a time: Load replaces it,
// TextContent and ChildCount read from it. A selector that matches nothing is
// not an error, it reads as "" and 0 respectively.
package page

import (
	"context"
	"fmt"
)

type Page interface {
	// Load navigates to the address and makes it the current document.
	Load(ctx context.Context, address string) error
	// TextContent returns the rendered text of the first element matching the selector.
	TextContent(ctx context.Context, selector string) (string, error)
	// ChildCount returns the number of element children of the first element
	// matching the selector.
	ChildCount(ctx context.Context, selector string) (int, error)
}

// Driver names a Page implementation in job definitions.
type Driver string

const (
	DriverBrowser Driver = "browser"
	DriverStatic  Driver = "static"
)

func ParseDriver(name string) (Driver, error) {
	switch Driver(name) {
	case "", DriverBrowser:
		return DriverBrowser, nil
	case DriverStatic:
		return DriverStatic, nil
	}
	return "", fmt.Errorf("unknown page driver %q", name)
}
