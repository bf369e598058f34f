package models

// FilterSpec is the closed filter value type for the question filter engine.
// Empty slices mean "no restriction" on that axis; the status booleans default
// permissive (both include flags true) when built from an API request.
type FilterSpec struct {
	Systems          []string     `json:"systems"`
	Disciplines      []string     `json:"disciplines"`
	Difficulties     []Difficulty `json:"difficulties"`
	IncludeUsed      bool         `json:"includeUsed"`
	IncludeUnused    bool         `json:"includeUnused"`
	IncludeCorrect   bool         `json:"includeCorrect"`
	IncludeIncorrect bool         `json:"includeIncorrect"`
	IncludeMarked    bool         `json:"includeMarked"`
}

// DefaultFilterSpec returns a spec that matches every active question
func DefaultFilterSpec() FilterSpec {
	return FilterSpec{
		IncludeUsed:      true,
		IncludeUnused:    true,
		IncludeCorrect:   false,
		IncludeIncorrect: false,
		IncludeMarked:    false,
	}
}

// FilterRequest is the wire shape of a filter specification. Pointer booleans
// distinguish "absent" (use the permissive default) from an explicit false.
type FilterRequest struct {
	Systems          []string     `json:"systems"`
	Disciplines      []string     `json:"disciplines"`
	Difficulties     []Difficulty `json:"difficulties" binding:"omitempty,dive,oneof=EASY MEDIUM HARD"`
	IncludeUsed      *bool        `json:"includeUsed"`
	IncludeUnused    *bool        `json:"includeUnused"`
	IncludeCorrect   *bool        `json:"includeCorrect"`
	IncludeIncorrect *bool        `json:"includeIncorrect"`
	IncludeMarked    *bool        `json:"includeMarked"`
}

// ToSpec resolves the request against the permissive defaults
func (r FilterRequest) ToSpec() FilterSpec {
	spec := DefaultFilterSpec()
	spec.Systems = r.Systems
	spec.Disciplines = r.Disciplines
	spec.Difficulties = r.Difficulties
	if r.IncludeUsed != nil {
		spec.IncludeUsed = *r.IncludeUsed
	}
	if r.IncludeUnused != nil {
		spec.IncludeUnused = *r.IncludeUnused
	}
	if r.IncludeCorrect != nil {
		spec.IncludeCorrect = *r.IncludeCorrect
	}
	if r.IncludeIncorrect != nil {
		spec.IncludeIncorrect = *r.IncludeIncorrect
	}
	if r.IncludeMarked != nil {
		spec.IncludeMarked = *r.IncludeMarked
	}
	return spec
}

// CreateCustomSetRequest is the body of POST /v1/practice-sets/custom
type CreateCustomSetRequest struct {
	Name         string        `json:"name" validate:"required,max=200"`
	Description  string        `json:"description" validate:"max=2000"`
	MaxQuestions int           `json:"maxQuestions" validate:"required,gt=0"`
	Step         int           `json:"step" validate:"required,gt=0"`
	Filters      FilterRequest `json:"filters"`
}

// CreateCustomSetResponse is returned after a successful set creation
type CreateCustomSetResponse struct {
	ID             int       `json:"id"`
	PracticeSetID  int       `json:"practiceSetId"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	TotalQuestions int       `json:"totalQuestions"`
	Status         SetStatus `json:"status"`
	Message        string    `json:"message"`
}

// FilteredCountRequest is the body of POST /v1/practice-sets/filtered-count
type FilteredCountRequest struct {
	Step    int           `json:"step" validate:"required,gt=0"`
	Filters FilterRequest `json:"filters"`
}

// FilterCounts is the per-axis breakdown for the filter UI
type FilterCounts struct {
	Systems            map[string]int `json:"systems"`
	Disciplines        map[string]int `json:"disciplines"`
	UsedQuestions      int            `json:"usedQuestions"`
	UnusedQuestions    int            `json:"unusedQuestions"`
	CorrectQuestions   int            `json:"correctQuestions"`
	IncorrectQuestions int            `json:"incorrectQuestions"`
	MarkedQuestions    int            `json:"markedQuestions"`
	EasyQuestions      int            `json:"easyQuestions"`
	MediumQuestions    int            `json:"mediumQuestions"`
	HardQuestions      int            `json:"hardQuestions"`
	Total              int            `json:"total"`
}

// AvailableFilters lists the tag values present in the candidate pool
type AvailableFilters struct {
	Systems     []string `json:"systems"`
	Disciplines []string `json:"disciplines"`
}

// FilterCountsResponse is the body of GET /v1/practice-sets/filter-counts
type FilterCountsResponse struct {
	Counts           FilterCounts     `json:"counts"`
	AvailableFilters AvailableFilters `json:"availableFilters"`
}

// RecordAttemptRequest is the body of POST /v1/attempts. UserID comes from
// the authenticated session, never from the payload.
type RecordAttemptRequest struct {
	QuestionID      int   `json:"questionId" validate:"required,gt=0"`
	SelectedOptions []int `json:"selectedOptions" validate:"required,min=1"`
	IsCorrect       *bool `json:"isCorrect" validate:"required"`
	TimeSpent       *int  `json:"timeSpent" validate:"required,gte=0"`
}

// BookmarkRequest is the body of POST /v1/questions/:id/bookmark
type BookmarkRequest struct {
	Bookmark *bool `json:"bookmark" validate:"required"`
}

// LoginRequest is the body of POST /v1/auth/login
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// CreateConversationRequest starts a new assistant conversation
type CreateConversationRequest struct {
	Title string `json:"title" validate:"max=200"`
}

// SendMessageRequest appends a user message and requests an assistant reply
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=8000"`
}

// FeedbackRequest is the body of POST /v1/feedback
type FeedbackRequest struct {
	Category string `json:"category" validate:"required,oneof=bug content ui other"`
	Text     string `json:"text" validate:"required,max=4000"`
}

// Pagination carries paging metadata on list responses
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// AttemptListResponse is the body of GET /v1/attempts
type AttemptListResponse struct {
	Success    bool          `json:"success"`
	Data       []UserAttempt `json:"data"`
	Pagination Pagination    `json:"pagination"`
}
