package website

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"git.handmade.network/hmn/postmerge/src/config"
	"git.handmade.network/hmn/postmerge/src/db"
	"git.handmade.network/hmn/postmerge/src/hmndata"
	"git.handmade.network/hmn/postmerge/src/merge"
	"git.handmade.network/hmn/postmerge/src/oops"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Merges posts given by id. Implemented by DBPostMerger; faked in tests.
type PostMerger interface {
	MergePosts(ctx context.Context, targetID int, sourceIDs []int, opts merge.Options) (bool, error)
}

type DBPostMerger struct {
	Conn   db.ConnOrTx
	Merger *merge.Merger
}

var _ PostMerger = &DBPostMerger{}

// Wires a merger to Postgres: the store, alerts and job queue all share conn.
func NewDBPostMerger(conn db.ConnOrTx) *DBPostMerger {
	return &DBPostMerger{
		Conn: conn,
		Merger: merge.NewMerger(
			hmndata.NewStore(conn),
			hmndata.NewAlertService(conn),
			hmndata.NewJobQueue(conn),
		),
	}
}

func (m *DBPostMerger) MergePosts(ctx context.Context, targetID int, sourceIDs []int, opts merge.Options) (bool, error) {
	posts, err := hmndata.FetchPostsByID(ctx, m.Conn, append([]int{targetID}, sourceIDs...))
	if err != nil {
		return false, err
	}
	return m.Merger.Merge(ctx, posts[0], posts[1:], opts)
}

type mergePostsRequest struct {
	TargetID    int     `json:"target_id"`
	SourceIDs   []int   `json:"source_ids"`
	SendAlert   bool    `json:"send_alert"`
	AlertReason string  `json:"alert_reason"`
	Log         *bool   `json:"log"`
	Message     *string `json:"message"`
}

func (r mergePostsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.TargetID, validation.Required, validation.Min(1)),
		validation.Field(&r.SourceIDs, validation.Each(validation.Required, validation.Min(1))),
	)
}

type mergePostsResponse struct {
	Merged    bool  `json:"merged"`
	TargetID  int   `json:"target_id"`
	SourceIDs []int `json:"source_ids"`
}

const maxMergeRequestBytes = 1 << 20

func APIMergePosts(merger PostMerger) Handler {
	return func(c *RequestContext) ResponseData {
		var req mergePostsRequest
		body := http.MaxBytesReader(c.Res, c.Req.Body, maxMergeRequestBytes)
		if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			return c.ErrorResponse(http.StatusBadRequest, NewSafeError(err, "request body is not valid JSON"))
		}
		if err := req.Validate(); err != nil {
			return c.ErrorResponse(http.StatusBadRequest, NewSafeError(err, "invalid merge request: %v", err))
		}

		opts := merge.Options{
			SendAlert:   req.SendAlert,
			AlertReason: req.AlertReason,
			Log:         req.Log == nil || *req.Log,
			ActorID:     c.ActorID,
			Message:     req.Message,
		}

		if timeout := config.Config.Merge.Timeout; timeout > 0 {
			cancel := c.WithTimeout(timeout)
			defer cancel()
		}

		merged, err := merger.MergePosts(c, req.TargetID, req.SourceIDs, opts)
		if err != nil {
			return mergeErrorResponse(c, err)
		}

		var res ResponseData
		res.WriteJson(mergePostsResponse{
			Merged:    merged,
			TargetID:  req.TargetID,
			SourceIDs: req.SourceIDs,
		}, c.Perf)
		return res
	}
}

func mergeErrorResponse(c *RequestContext, err error) ResponseData {
	var validationErr *merge.ValidationError
	switch {
	case errors.As(err, &validationErr):
		return c.ErrorResponse(http.StatusBadRequest, NewSafeError(err, "%s", validationErr.Error()))
	case errors.Is(err, db.NotFound):
		return c.ErrorResponse(http.StatusNotFound, NewSafeError(err, "post not found"))
	default:
		return c.ErrorResponse(http.StatusInternalServerError, oops.New(err, "failed to merge posts"))
	}
}
