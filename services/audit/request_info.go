package audit

import "context"

type requestInfoKey struct{}

// RequestInfo carries request tracking fields copied into audit records
type RequestInfo struct {
	RequestID string
	IPAddress string
	UserAgent string
}

// WithRequestInfo returns a context carrying info
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the request info stored by WithRequestInfo
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
