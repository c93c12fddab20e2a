package classifier

import (
	"strings"

	"github.com/xaenox/notegram/internal/models"
	"go.uber.org/zap"
)

// Resolver maps an embed link to a file in the vault.
type Resolver interface {
	Resolve(linkTarget, contextPath string) (models.ResolvedFile, bool)
}

var (
	DefaultPhotoExtensions    = []string{"jpg", "jpeg", "png", "gif", "webp"}
	DefaultDocumentExtensions = []string{
		"pdf", "doc", "docx", "xls", "xlsx", "ppt", "pptx",
		"odt", "ods", "odp", "rtf", "txt", "csv",
		"zip", "rar", "7z", "epub",
	}
)

// Classified holds the attachments of a note in first-seen order.
type Classified struct {
	Photos    []models.ResolvedFile `json:"photos"`
	Documents []models.ResolvedFile `json:"documents"`
}

// Empty reports whether no attachment was selected.
func (c Classified) Empty() bool {
	return len(c.Photos) == 0 && len(c.Documents) == 0
}

type Classifier struct {
	classes map[string]models.AttachmentClass
	logger  *zap.Logger
}

// New builds a classifier from extension lists. Nil lists fall back to the
// defaults; an extension present in both lists is a photo.
func New(photoExts, documentExts []string, logger *zap.Logger) *Classifier {
	if photoExts == nil {
		photoExts = DefaultPhotoExtensions
	}
	if documentExts == nil {
		documentExts = DefaultDocumentExtensions
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	classes := make(map[string]models.AttachmentClass, len(photoExts)+len(documentExts))
	for _, ext := range documentExts {
		classes[normalizeExt(ext)] = models.DocumentAttachment
	}
	for _, ext := range photoExts {
		classes[normalizeExt(ext)] = models.PhotoAttachment
	}

	return &Classifier{
		classes: classes,
		logger:  logger,
	}
}

// ClassOf maps a file extension to its class. Matching is case-insensitive
// and the leading dot is optional.
func (c *Classifier) ClassOf(ext string) models.AttachmentClass {
	if class, ok := c.classes[normalizeExt(ext)]; ok {
		return class
	}
	return models.IgnoredAttachment
}

// Classify resolves embeds and splits them into photos and documents.
// Broken links and non-attachment files are dropped; a path already seen in
// its class is skipped.
func (c *Classifier) Classify(embeds []models.EmbedRef, contextPath string, resolver Resolver) Classified {
	var result Classified
	seen := make(map[string]struct{}, len(embeds))

	for _, embed := range embeds {
		file, ok := resolver.Resolve(embed.LinkTarget, contextPath)
		if !ok {
			c.logger.Debug("Skipping unresolved embed",
				zap.String("link", embed.LinkTarget),
				zap.String("note", contextPath))
			continue
		}

		class := c.ClassOf(file.Extension)
		if class == models.IgnoredAttachment {
			continue
		}

		key := string(class) + ":" + file.Path
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		switch class {
		case models.PhotoAttachment:
			result.Photos = append(result.Photos, file)
		case models.DocumentAttachment:
			result.Documents = append(result.Documents, file)
		}
	}

	return result
}

func normalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
