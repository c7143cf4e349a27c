package builder

// Settings holds externally-editable generation options for a project.
type Settings struct {
	Name           string `json:"name"`
	FileNameColumn string `json:"fileNameColumn"`
	EmailSubject   string `json:"emailSubject"`
	EmailMessage   string `json:"emailMessage"`
}

// Column is one spreadsheet column header.
type Column struct {
	Title string `json:"title"`
}

// Table is the imported spreadsheet backing column annotations. The column
// list is the authoritative title source for rename propagation and orphan
// cleanup.
type Table struct {
	Columns []Column   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// ColumnTitles returns the current column titles in order.
func (t Table) ColumnTitles() []string {
	titles := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		titles = append(titles, column.Title)
	}
	return titles
}
