package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"productsearch/internal/project"
)

type projectCtxKey struct{}

// projectFromContext returns the project resolved by resolveProject. It is
// always present downstream of that middleware, even when every lookup
// failed — the demo fallback guarantees it.
func projectFromContext(ctx context.Context) *project.Project {
	p, _ := ctx.Value(projectCtxKey{}).(*project.Project)
	return p
}

// demoProject is the reserved fallback used when no project identifier is
// recognized, so the service never 500s on auth/lookup failure (spec §7).
func demoProject() *project.Project {
	return &project.Project{ID: project.DemoProjectID, Status: project.StatusActive}
}

// resolveProject determines the caller's project from, in precedence
// order: the X-API-Key header, the api_key query parameter, then the
// project_id query parameter (spec §6). Any lookup failure — unknown key,
// unknown ID, or the relational store being unreachable — falls back to the
// demo project rather than failing the request (spec §7).
func (h *handlers) resolveProject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		p := h.lookupProject(ctx, r)
		r = r.WithContext(context.WithValue(ctx, projectCtxKey{}, p))
		next.ServeHTTP(w, r)
	})
}

func (h *handlers) lookupProject(ctx context.Context, r *http.Request) *project.Project {
	if h.rel == nil {
		return demoProject()
	}

	if apiKey := apiKeyFromRequest(r); apiKey != "" {
		if p, err := h.rel.FindProjectByAPIKey(ctx, apiKey); err == nil {
			return p
		} else {
			h.logger.Warn("api key lookup failed, falling back to demo project", zap.Error(err))
		}
	} else if id := r.URL.Query().Get("project_id"); id != "" {
		if p, err := h.rel.FindProjectByID(ctx, id); err == nil {
			return p
		} else {
			h.logger.Warn("project lookup failed, falling back to demo project", zap.String("project_id", id), zap.Error(err))
		}
	}

	if p, err := h.rel.FindProjectByID(ctx, project.DemoProjectID); err == nil {
		return p
	}
	return demoProject()
}

func apiKeyFromRequest(r *http.Request) string {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}
