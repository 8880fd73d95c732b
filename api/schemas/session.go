package schemas

import (
	"context"
	"errors"
	"time"
)

// -- Browser Session Capability --

// ErrNodeVanished is returned by a SessionHandle when a NodeRef no longer
// resolves to a live node, usually because the DOM changed after enumeration.
var ErrNodeVanished = errors.New("node no longer attached to the document")

// NodeRef is an opaque handle to a node returned by SessionHandle.FindAll.
// It is only meaningful to the session that produced it.
type NodeRef interface {
	// String returns a debug representation of the reference.
	String() string
}

// NodeDescription is the batched form of several attribute reads on one node.
type NodeDescription struct {
	Tag        string
	Attributes map[string]string
	// Path is a structural CSS selector (tag:nth-of-type chain from html).
	Path string
	Text string
}

// Predicate is polled by SessionHandle.WaitUntil.
type Predicate func(ctx context.Context) (bool, error)

// SessionHandle is the browser capability consumed by the navigator and the
// scanner. A handle is owned by exactly one pipeline and is not safe for
// concurrent use.
type SessionHandle interface {
	// Navigate loads url and returns once the document is ready.
	Navigate(ctx context.Context, url string) error
	// FindAll returns every node matching the CSS selector query, in document order.
	// A query with no match returns an empty slice and no error.
	FindAll(ctx context.Context, query string) ([]NodeRef, error)
	// ReadAttribute returns the attribute value and whether it is present.
	ReadAttribute(ctx context.Context, node NodeRef, name string) (string, bool, error)
	Text(ctx context.Context, node NodeRef) (string, error)
	Describe(ctx context.Context, node NodeRef) (NodeDescription, error)
	Click(ctx context.Context, node NodeRef) error
	Type(ctx context.Context, node NodeRef, value string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// WaitUntil polls predicate until it returns true or timeout elapses.
	// It returns false without error on timeout.
	WaitUntil(ctx context.Context, predicate Predicate, timeout time.Duration) (bool, error)
	Close(ctx context.Context) error
}

// SessionFactory opens a fresh session. Each pipeline run gets its own.
type SessionFactory interface {
	NewSession(ctx context.Context) (SessionHandle, error)
	Name() string
}
