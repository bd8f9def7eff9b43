package domain

// IssueCode enumerates the machine-readable validation codes.
type IssueCode string

const (
	CodeSafeZoneTop        IssueCode = "SAFE_ZONE_TOP"
	CodeFontTooSmall       IssueCode = "FONT_TOO_SMALL"
	CodeTooManyPackshots   IssueCode = "TOO_MANY_PACKSHOTS"
	CodeLowContrast        IssueCode = "LOW_CONTRAST"
	CodeCanvasSizeMismatch IssueCode = "CANVAS_SIZE_MISMATCH"
	CodeBannedPhrase       IssueCode = "BANNED_PHRASE"
	CodeUnknownFormat      IssueCode = "UNKNOWN_FORMAT"

	// Render warnings produced by the composition engine.
	CodeBackgroundUnusable IssueCode = "BACKGROUND_UNUSABLE"
	CodePackshotUnusable   IssueCode = "PACKSHOT_UNUSABLE"
	CodeTextDegraded       IssueCode = "TEXT_DEGRADED"

	// Audit normalization fallbacks.
	CodeUnknown        IssueCode = "UNKNOWN"
	CodeNormalizeError IssueCode = "NORMALIZE_ERROR"
)

// Severity of an issue. Only errors fail validation.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// ValidationIssue is a single finding.
type ValidationIssue struct {
	Code     IssueCode `json:"code"`
	Message  string    `json:"message"`
	Severity Severity  `json:"severity"`
}

// ValidationResult aggregates the issues for one canvas in check order.
type ValidationResult struct {
	CanvasID string            `json:"canvas_id"`
	Issues   []ValidationIssue `json:"issues"`
	Passed   bool              `json:"passed"`
}

// NewValidationResult derives the pass flag from the issue list.
func NewValidationResult(canvasID string, issues []ValidationIssue) ValidationResult {
	if issues == nil {
		issues = []ValidationIssue{}
	}
	passed := true
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			passed = false
			break
		}
	}
	return ValidationResult{CanvasID: canvasID, Issues: issues, Passed: passed}
}

// HasCode reports whether any issue carries code.
func (r ValidationResult) HasCode(code IssueCode) bool {
	for _, issue := range r.Issues {
		if issue.Code == code {
			return true
		}
	}
	return false
}
