package redmine

type idName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type journal struct {
	ID    int     `json:"id"`
	Notes *string `json:"notes"`
}

type issue struct {
	ID          int       `json:"id"`
	Project     idName    `json:"project"`
	Status      idName    `json:"status"`
	Author      idName    `json:"author"`
	Subject     string    `json:"subject"`
	Description string    `json:"description"`
	StartDate   *string   `json:"start_date"`
	DueDate     *string   `json:"due_date"`
	UpdatedOn   string    `json:"updated_on"`
	ClosedOn    *string   `json:"closed_on"`
	Journals    []journal `json:"journals"`
}

type issuesPage struct {
	Issues     []issue `json:"issues"`
	TotalCount int     `json:"total_count"`
	Offset     int     `json:"offset"`
	Limit      int     `json:"limit"`
}

type updateRequest struct {
	Issue struct {
		Notes    string `json:"notes"`
		StatusID *int   `json:"status_id,omitempty"`
	} `json:"issue"`
}
