package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"caprev/internal/model"
)

// ErrEmptyComment is returned for a comment with blank text.
var ErrEmptyComment = errors.New("comment text is required")

// ListComments returns an asset's comments in creation order.
func (s *Service) ListComments(ctx context.Context, assetID string) ([]*model.Comment, error) {
	asset, err := s.assets.Get(ctx, assetID)
	if err != nil {
		return nil, err
	}
	if asset.Comments == nil {
		return []*model.Comment{}, nil
	}
	return asset.Comments, nil
}

// AddComment appends a comment, optionally pinned to a video timestamp.
func (s *Service) AddComment(ctx context.Context, assetID, text string, timestamp *float64, author model.Author) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}
	if author != model.AuthorAdmin {
		author = model.AuthorUser
	}

	comment := &model.Comment{
		ID:        s.idgen.New(),
		Text:      text,
		Timestamp: timestamp,
		Author:    author,
		CreatedAt: s.clock.Now(),
	}
	if _, err := s.assets.Update(ctx, assetID, func(a *model.Asset) error {
		a.Comments = append(a.Comments, comment)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("adding comment: %w", err)
	}
	return comment, nil
}

// UpdateComment rewrites a comment's text. The timestamp changes only when
// a new one is given.
// Any caller reaching this may edit any comment; there is no ownership check.
func (s *Service) UpdateComment(ctx context.Context, assetID, commentID, text string, timestamp *float64) (*model.Comment, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyComment
	}

	now := s.clock.Now()
	var updated model.Comment
	if _, err := s.assets.Update(ctx, assetID, func(a *model.Asset) error {
		i := a.FindComment(commentID)
		if i < 0 {
			return &NotFoundError{Kind: "comment", ID: commentID}
		}
		c := a.Comments[i]
		c.Text = text
		if timestamp != nil {
			c.Timestamp = timestamp
		}
		c.UpdatedAt = &now
		updated = *c
		return nil
	}); err != nil {
		return nil, fmt.Errorf("updating comment: %w", err)
	}
	return &updated, nil
}

// DeleteComment removes a comment. There is no ownership check.
func (s *Service) DeleteComment(ctx context.Context, assetID, commentID string) error {
	if _, err := s.assets.Update(ctx, assetID, func(a *model.Asset) error {
		i := a.FindComment(commentID)
		if i < 0 {
			return &NotFoundError{Kind: "comment", ID: commentID}
		}
		a.Comments = append(a.Comments[:i], a.Comments[i+1:]...)
		return nil
	}); err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return nil
}
