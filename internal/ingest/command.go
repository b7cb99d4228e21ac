package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/Aman-CERP/docsearch/internal/errors"
)

// Op names a lifecycle command.
type Op string

const (
	OpIndex      Op = "index"
	OpTag        Op = "tag"
	OpMove       Op = "move"
	OpDelete     Op = "delete"
	OpDeleteMany Op = "delete_many"
)

// Command is the serialized form of one lifecycle event, as carried by the
// spool queue.
type Command struct {
	Op Op `json:"op"`

	// Job is set for OpIndex.
	Job *Job `json:"job,omitempty"`

	// FileIDs lists the targets of tag, move and delete.
	FileIDs []string `json:"file_ids,omitempty"`
	// Tag is the ";"-separated tag text for OpTag.
	Tag string `json:"tag,omitempty"`
	// FolderID is the destination for OpMove.
	FolderID string `json:"folder_id,omitempty"`
}

// String describes c for logs.
func (c Command) String() string {
	switch c.Op {
	case OpIndex:
		if c.Job != nil {
			return fmt.Sprintf("index %s", c.Job.FileID)
		}
	case OpMove:
		return fmt.Sprintf("move %s -> %s", strings.Join(c.FileIDs, ","), c.FolderID)
	}
	return fmt.Sprintf("%s %s", c.Op, strings.Join(c.FileIDs, ","))
}

// Validate checks that c carries what its op needs.
func (c Command) Validate() error {
	switch c.Op {
	case OpIndex:
		if c.Job == nil {
			return errors.ValidationError("index command needs a job", nil)
		}
		return c.Job.validate()
	case OpTag:
		if len(c.FileIDs) != 1 {
			return errors.ValidationError("tag command needs exactly one file id", nil)
		}
		if strings.TrimSpace(c.Tag) == "" {
			return errors.ValidationError("tag command needs a tag", nil)
		}
	case OpMove:
		if len(c.FileIDs) == 0 {
			return errors.ValidationError("move command needs file ids", nil)
		}
	case OpDelete, OpDeleteMany:
		if len(c.FileIDs) == 0 {
			return errors.ValidationError("delete command needs file ids", nil)
		}
	default:
		return errors.ValidationError(fmt.Sprintf("unknown command %q", c.Op), nil)
	}
	for _, id := range c.FileIDs {
		if strings.TrimSpace(id) == "" {
			return errors.ValidationError("file ids must not be empty", nil)
		}
	}
	return nil
}

// Apply validates and runs c.
func (p *Pipeline) Apply(ctx context.Context, c Command) error {
	if err := c.Validate(); err != nil {
		return err
	}

	switch c.Op {
	case OpIndex:
		return p.Ingest(ctx, *c.Job)
	case OpTag:
		return p.Tag(ctx, c.FileIDs[0], c.Tag)
	case OpMove:
		return p.Move(ctx, c.FileIDs, c.FolderID)
	default:
		return p.Remove(ctx, c.FileIDs...)
	}
}
