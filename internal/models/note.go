package models

// AttachmentClass is the bucket an embedded file falls into.
type AttachmentClass string

const (
	PhotoAttachment    AttachmentClass = "photo"
	DocumentAttachment AttachmentClass = "document"
	IgnoredAttachment  AttachmentClass = "ignored"
)

// Note is a note read once per publish action.
type Note struct {
	Path        string         `json:"path"`
	RawText     string         `json:"raw_text"`
	Frontmatter map[string]any `json:"frontmatter,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Embeds      []EmbedRef     `json:"embeds,omitempty"`
}

// EmbedRef is an in-note reference to a local file.
type EmbedRef struct {
	LinkTarget string `json:"link_target"`
}

// ResolvedFile is an embed resolved inside the vault. Path is the
// vault-relative handle used to read the bytes at dispatch time.
type ResolvedFile struct {
	Name      string `json:"name"`
	Extension string `json:"extension"`
	Path      string `json:"path"`
}

// FileData carries the bytes of a resolved file.
type FileData struct {
	Name  string
	Bytes []byte
}
