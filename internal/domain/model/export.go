package model

// ExportVersion marks the layout of ExportDocument.
const ExportVersion = "1.0"

// ExportDocument is the downloadable snapshot of the task collection.
type ExportDocument struct {
	Tasks      []Task `json:"tasks"`
	ExportTime string `json:"exportTime"`
	Version    string `json:"version"`
}

// TaskIDs lists the ids in document order.
func (d ExportDocument) TaskIDs() []string {
	ids := make([]string, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		ids = append(ids, t.TaskID)
	}
	return ids
}
