package auth

import (
	"net/http"
)

// Interceptor wraps a handler. It either calls next or writes a response itself.
type Interceptor func(next http.Handler) http.Handler

type namedInterceptor struct {
	name string
	fn   Interceptor
}

// Chain is an ordered list of interceptors applied to every request. The first
// registered interceptor sees the request first.
type Chain struct {
	interceptors []namedInterceptor
}

func NewChain() *Chain {
	return &Chain{}
}

func (c *Chain) Use(name string, fn Interceptor) *Chain {
	c.interceptors = append(c.interceptors, namedInterceptor{name: name, fn: fn})
	return c
}

// Names lists the interceptors in the order they run.
func (c *Chain) Names() []string {
	names := make([]string, len(c.interceptors))
	for i, in := range c.interceptors {
		names[i] = in.name
	}
	return names
}

// Middlewares returns the interceptors in registration order, for chi's Use.
func (c *Chain) Middlewares() []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, len(c.interceptors))
	for i, in := range c.interceptors {
		out[i] = in.fn
	}
	return out
}
