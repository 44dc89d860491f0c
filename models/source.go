package models

// SourceKind names one of the raw JSON sources, in resolution priority order.
type SourceKind string

const (
	SourceEmbeddedState    SourceKind = "embedded_state"
	SourceInternalAPI      SourceKind = "internal_api"
	SourceStructuredMarkup SourceKind = "structured_markup"
)

// Outcome is the result class of one page-visit resolution.
type Outcome string

const (
	// OutcomeFound means at least one source produced normalized products.
	OutcomeFound Outcome = "found"

	// OutcomeNoProducts means every source was exhausted without a product.
	// It is a legitimate result, not a failure.
	OutcomeNoProducts Outcome = "no_products_found"
)

// EmptyReason classifies a NoProductsFound page for the caller.
type EmptyReason string

const (
	EmptyReasonNone          EmptyReason = ""
	EmptyReasonBlocked       EmptyReason = "blocked"
	EmptyReasonLayoutChanged EmptyReason = "layout_changed"
	EmptyReasonEmpty         EmptyReason = "empty"
)

// SourceReport records what happened to one source during resolution.
type SourceReport struct {
	Kind SourceKind `json:"kind"`

	// Attempted is false when the resolver never asked for the source.
	Attempted bool `json:"attempted"`

	// Available is false when the source yielded no JSON at all.
	Available bool `json:"available"`

	// Status is the HTTP status of the internal API fetch, when known.
	Status int `json:"status,omitempty"`

	// Path is where in the JSON tree the candidate array was found.
	Path string `json:"path,omitempty"`

	Located    int    `json:"located"`
	Normalized int    `json:"normalized"`
	Rejected   int    `json:"rejected"`
	Error      string `json:"error,omitempty"`
}
