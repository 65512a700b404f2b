package types

import "encoding/json"

// AccountWideData holds preferences shared by every account. There is a
// single instance per installation. The list fields are opaque to the
// store.
type AccountWideData struct {
	Options      []json.RawMessage
	Sections     []json.RawMessage
	LocalRecipes []json.RawMessage

	ShouldMakeNewAdditions bool
	EnhancedSlots          bool

	// JWT is the auth token for the companion web service.
	JWT string
}

// NewAccountWideData returns the defaults used when nothing has been saved.
func NewAccountWideData() *AccountWideData {
	return &AccountWideData{
		Options:                []json.RawMessage{},
		Sections:               []json.RawMessage{},
		LocalRecipes:           []json.RawMessage{},
		ShouldMakeNewAdditions: true,
		EnhancedSlots:          true,
	}
}
