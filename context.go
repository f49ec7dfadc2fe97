package linkauth

import (
	"context"
	"strings"
)

type clientIPContextKey struct{}
type userAgentContextKey struct{}
type locationContextKey struct{}

const unknownRequestField = "unknown"

// WithClientIP attaches the caller's IP address to ctx. It is recorded on
// the session row and embedded in issued tokens.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithUserAgent attaches the HTTP User-Agent string to ctx. It becomes the
// session's device description.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentContextKey{}, userAgent)
}

// WithLocation attaches a coarse caller location to ctx.
func WithLocation(ctx context.Context, location string) context.Context {
	return context.WithValue(ctx, locationContextKey{}, location)
}

func stringFromContext(ctx context.Context, key any) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return strings.TrimSpace(v)
}

func orUnknown(v string) string {
	if v == "" {
		return unknownRequestField
	}
	return v
}

// RequestInfoFromContext collects the request attributes attached with
// [WithUserAgent], [WithClientIP] and [WithLocation]. Missing values read as "unknown".
func RequestInfoFromContext(ctx context.Context) RequestInfo {
	return RequestInfo{
		DeviceInfo: orUnknown(stringFromContext(ctx, userAgentContextKey{})),
		IPAddress:  orUnknown(stringFromContext(ctx, clientIPContextKey{})),
		Location:   orUnknown(stringFromContext(ctx, locationContextKey{})),
	}
}
