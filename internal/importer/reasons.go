package importer

// Skip reasons reported for lines that did not produce a record.
const (
	ReasonBlank         = "blank"
	ReasonHeader        = "header"
	ReasonTooFewTokens  = "too_few_tokens"
	ReasonNoDateGroup   = "no_date_group"
	ReasonInvalidDate   = "invalid_date"
	ReasonMissingFields = "missing_fields"
	ReasonDuplicate     = "duplicate"
)
