package responder

// Response is the envelope of every JSON response.
type Response struct {
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
	Meta  Meta   `json:"meta"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type Meta struct {
	TraceId    string          `json:"traceId,omitempty"`
	Took       int64           `json:"took,omitempty"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

type PaginationMeta struct {
	Limit int  `json:"limit"`
	Count int  `json:"count"`
	More  bool `json:"hasMore"`
}

type Option func(*Meta)

func WithTraceID(id string) Option {
	return func(m *Meta) {
		m.TraceId = id
	}
}

func WithTook(ms int64) Option {
	return func(m *Meta) {
		m.Took = ms
	}
}

func WithPagination(p *PaginationMeta) Option {
	return func(m *Meta) {
		m.Pagination = p
	}
}
