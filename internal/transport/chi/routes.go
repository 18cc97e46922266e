package chi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface lists the admin API operations.
type ServerInterface interface {
	// GET /health
	HealthCheck(w http.ResponseWriter, r *http.Request)
	// GET /metrics
	Metrics(w http.ResponseWriter, r *http.Request)
	// GET /indexes
	ListIndexes(w http.ResponseWriter, r *http.Request)
	// GET /indexes/{name}
	GetIndex(w http.ResponseWriter, r *http.Request, name string)
	// GET /indexes/{name}/failure-rate
	GetFailureRate(w http.ResponseWriter, r *http.Request, name string)
	// GET /indexes/{name}/errors
	GetIndexingErrors(w http.ResponseWriter, r *http.Request, name string)
	// PUT /indexes/{name}/priority
	SetPriority(w http.ResponseWriter, r *http.Request, name string)
	// POST /indexes/{name}/touch
	TouchIndex(w http.ResponseWriter, r *http.Request, name string)
	// GET /references/from
	ReferencesFrom(w http.ResponseWriter, r *http.Request, params ReferencesParams)
	// GET /references/to
	ReferencesTo(w http.ResponseWriter, r *http.Request, params ReferencesParams)
}

// InvalidParamFormatError reports a parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }

// ChiServerOptions configures HandlerWithOptions.
type ChiServerOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// serverInterfaceWrapper binds parameters before calling the handlers.
type serverInterfaceWrapper struct {
	errorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *serverInterfaceWrapper) withName(fn func(w http.ResponseWriter, r *http.Request, name string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var name string
		err := runtime.BindStyledParameterWithOptions("simple", "name", chi.URLParam(r, "name"), &name,
			runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
		if err != nil {
			siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "name", Err: err})
			return
		}
		fn(w, r, name)
	}
}

func (siw *serverInterfaceWrapper) withReferences(
	fn func(w http.ResponseWriter, r *http.Request, params ReferencesParams),
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var params ReferencesParams
		query := r.URL.Query()

		if err := runtime.BindQueryParameter("form", true, true, "key", query, &params.Key); err != nil {
			siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "key", Err: err})
			return
		}
		if err := runtime.BindQueryParameter("form", true, false, "count_only", query, &params.CountOnly); err != nil {
			siw.errorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "count_only", Err: err})
			return
		}
		fn(w, r, params)
	}
}

// Handler mounts si on a new chi router.
func Handler(si ServerInterface) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{})
}

// HandlerWithOptions mounts si on options.BaseRouter.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, err.Error())
		}
	}
	siw := &serverInterfaceWrapper{errorHandlerFunc: options.ErrorHandlerFunc}

	r.Get("/health", si.HealthCheck)
	r.Get("/metrics", si.Metrics)
	r.Get("/indexes", si.ListIndexes)
	r.Get("/indexes/{name}", siw.withName(si.GetIndex))
	r.Get("/indexes/{name}/failure-rate", siw.withName(si.GetFailureRate))
	r.Get("/indexes/{name}/errors", siw.withName(si.GetIndexingErrors))
	r.Put("/indexes/{name}/priority", siw.withName(si.SetPriority))
	r.Post("/indexes/{name}/touch", siw.withName(si.TouchIndex))
	r.Get("/references/from", siw.withReferences(si.ReferencesFrom))
	r.Get("/references/to", siw.withReferences(si.ReferencesTo))
	return r
}
