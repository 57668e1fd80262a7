package request

// ResolveTaskRequest closes a queue task handled out of band
type ResolveTaskRequest struct {
	Note string `json:"note" binding:"required,min=3,max=500"`
}

// CorrectedLineRequest is one corrected document line
type CorrectedLineRequest struct {
	Description string `json:"description" binding:"required,min=1,max=255"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	UnitPrice   int64  `json:"unit_price" binding:"required,min=1"`
}

// ResubmitDocumentRequest replaces a rejected document's lines
type ResubmitDocumentRequest struct {
	Lines []CorrectedLineRequest `json:"lines" binding:"required,min=1,dive"`
}
