package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// Health check
	// (GET /health)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// Raster metadata
	// (GET /metadata)
	GetMetadata(w http.ResponseWriter, r *http.Request)
	// Clamped window as raw BSQ bytes or PNG
	// (GET /window)
	GetWindow(w http.ResponseWriter, r *http.Request, params GetWindowParams)
	// Pixel containing a lat/lon
	// (GET /pixel)
	GetPixel(w http.ResponseWriter, r *http.Request, params GetPixelParams)
	// Lat/lon of a pixel
	// (GET /latlon)
	GetLatLon(w http.ResponseWriter, r *http.Request, params GetLatLonParams)
	// Sensor footprint in pixels
	// (GET /footprint)
	GetFootprint(w http.ResponseWriter, r *http.Request, params GetFootprintParams)
	// Generate and fly a path
	// (POST /simulate)
	Simulate(w http.ResponseWriter, r *http.Request)
}

// ServerInterfaceWrapper converts contexts to parameters.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

type MiddlewareFunc func(http.Handler) http.Handler

// GetHealth operation middleware
func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetHealth)
}

// GetMetadata operation middleware
func (siw *ServerInterfaceWrapper) GetMetadata(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.GetMetadata)
}

// GetWindow operation middleware
func (siw *ServerInterfaceWrapper) GetWindow(w http.ResponseWriter, r *http.Request) {
	var params GetWindowParams

	if !siw.bindQuery(w, r, "x", true, &params.X) ||
		!siw.bindQuery(w, r, "y", true, &params.Y) ||
		!siw.bindQuery(w, r, "width", true, &params.Width) ||
		!siw.bindQuery(w, r, "height", true, &params.Height) ||
		!siw.bindQuery(w, r, "format", false, &params.Format) ||
		!siw.bindQuery(w, r, "cached", false, &params.Cached) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetWindow(w, r, params)
	})
}

// GetPixel operation middleware
func (siw *ServerInterfaceWrapper) GetPixel(w http.ResponseWriter, r *http.Request) {
	var params GetPixelParams

	if !siw.bindQuery(w, r, "lat", true, &params.Lat) ||
		!siw.bindQuery(w, r, "lon", true, &params.Lon) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetPixel(w, r, params)
	})
}

// GetLatLon operation middleware
func (siw *ServerInterfaceWrapper) GetLatLon(w http.ResponseWriter, r *http.Request) {
	var params GetLatLonParams

	if !siw.bindQuery(w, r, "px", true, &params.Px) ||
		!siw.bindQuery(w, r, "py", true, &params.Py) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetLatLon(w, r, params)
	})
}

// GetFootprint operation middleware
func (siw *ServerInterfaceWrapper) GetFootprint(w http.ResponseWriter, r *http.Request) {
	var params GetFootprintParams

	if !siw.bindQuery(w, r, "altitude", true, &params.Altitude) ||
		!siw.bindQuery(w, r, "fov", false, &params.Fov) {
		return
	}

	siw.serve(w, r, func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetFootprint(w, r, params)
	})
}

// Simulate operation middleware
func (siw *ServerInterfaceWrapper) Simulate(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, siw.Handler.Simulate)
}

// bindQuery binds one form-style query parameter into dest, reporting
// failures through ErrorHandlerFunc. It returns false when the request has
// been answered.
func (siw *ServerInterfaceWrapper) bindQuery(w http.ResponseWriter, r *http.Request, name string, required bool, dest interface{}) bool {
	query := r.URL.Query()
	if required && query.Get(name) == "" {
		siw.ErrorHandlerFunc(w, r, &RequiredParamError{ParamName: name})
		return false
	}
	if err := runtime.BindQueryParameter("form", true, required, name, query, dest); err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: name, Err: err})
		return false
	}
	return true
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, fn http.HandlerFunc) {
	handler := http.Handler(fn)
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}
	handler.ServeHTTP(w, r)
}

type RequiredParamError struct {
	ParamName string
}

func (e *RequiredParamError) Error() string {
	return fmt.Sprintf("Query argument %s is required, but not found", e.ParamName)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

// ParamName returns the offending parameter of a binding error, or "" for
// other errors
func ParamName(err error) string {
	switch e := err.(type) {
	case *RequiredParamError:
		return e.ParamName
	case *InvalidParamFormatError:
		return e.ParamName
	}
	return ""
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerWithOptions creates http.Handler with additional options
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}
	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/health", wrapper.GetHealth)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/metadata", wrapper.GetMetadata)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/window", wrapper.GetWindow)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/pixel", wrapper.GetPixel)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/latlon", wrapper.GetLatLon)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/footprint", wrapper.GetFootprint)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/simulate", wrapper.Simulate)
	})

	return r
}
