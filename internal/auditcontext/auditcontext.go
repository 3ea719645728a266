// Package auditcontext carries request metadata recorded with audit entries.
package auditcontext

import "context"

type requestMetaKey struct{}

type requestMeta struct {
	ipAddress string
	userAgent string
}

func WithRequestMeta(ctx context.Context, ipAddress, userAgent string) context.Context {
	return context.WithValue(ctx, requestMetaKey{}, requestMeta{ipAddress: ipAddress, userAgent: userAgent})
}

func IPAddressFromContext(ctx context.Context) string {
	meta, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return meta.ipAddress
}

func UserAgentFromContext(ctx context.Context) string {
	meta, _ := ctx.Value(requestMetaKey{}).(requestMeta)
	return meta.userAgent
}
