package types

// TemporaryIDPrefix marks client-minted placeholder ids
const TemporaryIDPrefix = "temp-"

// DraftHandle identifies a draft for its whole lifetime, including across
// reloads. TempID doubles as the placeholder entity id on documents
// uploaded before the estimate exists.
type DraftHandle struct {
	TempID string `json:"tempId"`
}

func (h DraftHandle) IsZero() bool {
	return h.TempID == ""
}
