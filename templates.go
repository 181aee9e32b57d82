package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Template is the current prompt for one generation strategy. One row per
// strategy key; overwrites go through Templates.Upsert so the outgoing
// version is snapshotted first.
type Template struct {
	bun.BaseModel `bun:"table:templates,alias:tpl"`
	Strategy      string `bun:"strategy,pk" json:"strategy"`
	Name          string `bun:"name,notnull" json:"name"`
	Prompt        string `bun:"prompt,notnull" json:"prompt"`
}

// TemplateRevision is an immutable snapshot of a template's prior
// name/prompt, appended before every overwrite. The log is never pruned
// or rewritten; rollback appends to it like any other write.
type TemplateRevision struct {
	bun.BaseModel `bun:"table:template_revisions,alias:tplr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id"`
	Strategy      string     `bun:"strategy,notnull" json:"strategy"`
	Name          string     `bun:"name,notnull" json:"name"`
	Prompt        string     `bun:"prompt,notnull" json:"prompt"`
	ChangedAt     *time.Time `bun:"changed_at,nullzero,default:current_timestamp" json:"changed_at,omitempty"`
	ChangedBy     *uuid.UUID `bun:"changed_by,nullzero,type:uuid" json:"changed_by,omitempty"`
}
