package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kron12345/coreplanx/internal/partition"
	"github.com/kron12345/coreplanx/internal/timetable"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, svc *timetable.Service) {
	v1 := router.Group("/api/v1")

	tt := v1.Group("/timetable")
	tt.GET("", handleGetSnapshot(svc))
	tt.PUT("", handleReplaceSnapshot(svc))

	tt.GET("/revisions", handleListRevisions(svc))
	tt.POST("/revisions", handleCreateRevision(svc))
	tt.GET("/revisions/:id", handleGetRevision(svc))
	tt.POST("/revisions/:id/restore", handleRestoreRevision(svc))

	tt.GET("/service-parts", handleListParts(svc))
	tt.POST("/service-parts/rebuild", handleRebuildParts(svc))
	tt.POST("/service-parts/merge", handleMergeParts(svc))
	tt.POST("/service-parts/:id/split", handleSplitPart(svc))

	tt.GET("/service-part-links", handleListLinks(svc))
	tt.PUT("/service-part-links", handleUpsertLink(svc))

	v1.GET("/variants/:id/partitions", handlePlanPartitions())
	v1.POST("/variants/:id/partitions", handleEnsureVariant(svc))
	v1.DELETE("/variants/:id/partitions", handleDropVariant(svc))
}

// scope carries variantId and stageId from the body or the query string.
type scope struct {
	VariantID string `json:"variantId"`
	StageID   string `json:"stageId"`
}

func (s *scope) fromQuery(c *gin.Context) {
	if s.VariantID == "" {
		s.VariantID = c.Query("variantId")
	}
	if s.StageID == "" {
		s.StageID = c.Query("stageId")
	}
}

// bindBody decodes an optional JSON body into dst. An empty body leaves dst
// untouched.
func bindBody(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		writeBadBody(c, err)
		return false
	}
	return true
}

// jsonList decodes raw into dst only if raw is a JSON array; anything else
// leaves dst nil so the store rejects it as not a list.
func jsonList(raw json.RawMessage, dst interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil
	}
	return json.Unmarshal(trimmed, dst)
}

func handleGetSnapshot(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := svc.GetSnapshot(c.Request.Context(), c.Query("variantId"), c.Query("stageId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

type replaceBody struct {
	scope
	TrainRuns     json.RawMessage `json:"trainRuns"`
	TrainSegments json.RawMessage `json:"trainSegments"`
	Message       *string         `json:"message"`
	CreatedBy     *string         `json:"createdBy"`
}

func handleReplaceSnapshot(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body replaceBody
		if !bindBody(c, &body) {
			return
		}
		body.fromQuery(c)
		req := timetable.ReplaceRequest{
			VariantID: body.VariantID,
			StageID:   body.StageID,
			Message:   body.Message,
			CreatedBy: body.CreatedBy,
		}
		if err := jsonList(body.TrainRuns, &req.TrainRuns); err != nil {
			writeBadBody(c, err)
			return
		}
		if err := jsonList(body.TrainSegments, &req.TrainSegments); err != nil {
			writeBadBody(c, err)
			return
		}
		res, err := svc.ReplaceSnapshot(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleListRevisions(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		revs, err := svc.ListRevisions(c.Request.Context(), c.Query("variantId"), c.Query("stageId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, revs)
	}
}

type revisionBody struct {
	scope
	Message   *string `json:"message"`
	CreatedBy *string `json:"createdBy"`
}

func handleCreateRevision(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body revisionBody
		if !bindBody(c, &body) {
			return
		}
		body.fromQuery(c)
		rev, err := svc.CreateRevision(c.Request.Context(), body.VariantID, body.StageID, body.Message, body.CreatedBy)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, rev)
	}
}

func handleGetRevision(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		rev, snap, err := svc.GetRevision(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"revision":      rev,
			"trainRuns":     snap.TrainRuns,
			"trainSegments": snap.TrainSegments,
		})
	}
}

func handleRestoreRevision(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body revisionBody
		if !bindBody(c, &body) {
			return
		}
		rev, err := svc.RestoreRevision(c.Request.Context(), c.Param("id"), body.Message, body.CreatedBy)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"revision": rev})
	}
}

func handleListParts(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		parts, err := svc.ListTrainServiceParts(c.Request.Context(), c.Query("variantId"), c.Query("stageId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, parts)
	}
}

type rebuildBody struct {
	scope
	TimetableYearLabel *string `json:"timetableYearLabel"`
}

func handleRebuildParts(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body rebuildBody
		if !bindBody(c, &body) {
			return
		}
		body.fromQuery(c)
		res, err := svc.RebuildTrainServiceParts(c.Request.Context(), body.VariantID, body.StageID, body.TimetableYearLabel)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type splitBody struct {
	scope
	SplitAfterSegmentID  *string `json:"splitAfterSegmentId"`
	SplitAfterOrderIndex *int    `json:"splitAfterOrderIndex"`
	NewPartID            *string `json:"newPartId"`
}

func handleSplitPart(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body splitBody
		if !bindBody(c, &body) {
			return
		}
		body.fromQuery(c)
		res, err := svc.SplitTrainServicePart(c.Request.Context(), timetable.SplitRequest{
			VariantID:            body.VariantID,
			StageID:              body.StageID,
			PartID:               c.Param("id"),
			SplitAfterSegmentID:  body.SplitAfterSegmentID,
			SplitAfterOrderIndex: body.SplitAfterOrderIndex,
			NewPartID:            body.NewPartID,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type mergeBody struct {
	scope
	LeftPartID  string `json:"leftPartId"`
	RightPartID string `json:"rightPartId"`
}

func handleMergeParts(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body mergeBody
		if !bindBody(c, &body) {
			return
		}
		body.fromQuery(c)
		res, err := svc.MergeTrainServiceParts(c.Request.Context(), body.VariantID, body.StageID, body.LeftPartID, body.RightPartID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleListLinks(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		links, err := svc.ListServicePartLinks(c.Request.Context(), c.Query("variantId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

type linkBody struct {
	scope
	FromPartID string `json:"fromPartId"`
	ToPartID   string `json:"toPartId"`
	Kind       string `json:"kind"`
}

func handleUpsertLink(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body linkBody
		if !bindBody(c, &body) {
			return
		}
		body.fromQuery(c)
		link, err := svc.UpsertServicePartLink(c.Request.Context(), body.VariantID, body.FromPartID, body.ToPartID, body.Kind)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

func handlePlanPartitions() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"variantId":  c.Param("id"),
			"partitions": partitionView(partition.Plan(c.Param("id"))),
		})
	}
}

func partitionView(plan []partition.Partition) []gin.H {
	out := make([]gin.H, len(plan))
	for i, p := range plan {
		out[i] = gin.H{"parent": p.Parent, "name": p.Name}
	}
	return out
}

func handleEnsureVariant(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.EnsureVariant(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"variantId":  c.Param("id"),
			"partitions": partitionView(partition.Plan(c.Param("id"))),
		})
	}
}

func handleDropVariant(svc *timetable.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DropVariant(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
