package submission

import (
	"context"
	"errors"
	"fmt"

	"survey-service/models"
	"survey-service/wizard"

	"github.com/apex/log"
)

var (
	ErrMissingVillage      = errors.New("villageId is required before submission")
	ErrMissingDisasterType = errors.New("disasterType is required before submission")
)

// Options controls one submit attempt.
type Options struct {
	// Photos staged locally, not yet uploaded.
	Photos []StagedPhoto
	// EditFlow marks an edit of an existing survey: on upload failure the
	// previously uploaded URLs still carry the submission.
	EditFlow bool
}

// Pipeline turns the in-memory aggregate into a backend-accepted payload and
// executes the exchange exactly once per confirmed submit action.
type Pipeline struct {
	client  *Client
	manager *wizard.Manager

	// OnSubmitted, when set, is invoked after a successful submission.
	OnSubmitted func(*models.SubmittedSurvey)
}

func NewPipeline(client *Client, manager *wizard.Manager) *Pipeline {
	return &Pipeline{client: client, manager: manager}
}

// Submit runs the pipeline: preconditions, photo upload, payload reshaping,
// POST, draft cleanup. On any failure the in-memory aggregate is preserved
// so the user can retry without re-entering data.
func (p *Pipeline) Submit(ctx context.Context, sess *wizard.Session, opts Options) (*models.SubmittedSurvey, error) {
	sess.SyncGeometry()
	data := sess.Data()

	// Preconditions: no network call happens when they fail.
	if data.VillageId == "" {
		return nil, ErrMissingVillage
	}
	if data.DisasterType == "" {
		return nil, ErrMissingDisasterType
	}

	if err := sess.BeginSubmit(); err != nil {
		return nil, err
	}
	defer sess.EndSubmit()

	// Previously uploaded URLs pass through unchanged.
	photoUrls := append([]string{}, data.PhotoUrls...)

	// Photos upload first; the payload embeds the resulting URLs, so upload
	// and submission are strictly sequential.
	if len(opts.Photos) > 0 {
		urls, err := p.client.UploadImages(ctx, opts.Photos)
		if err != nil {
			if opts.EditFlow && len(photoUrls) > 0 {
				log.Warnf("Photo upload failed on edit of task %s, falling back to %d existing urls: %v",
					sess.TaskId, len(photoUrls), err)
			} else {
				return nil, fmt.Errorf("uploading photos: %w", err)
			}
		} else {
			photoUrls = append(photoUrls, urls...)
		}
	}

	report := BuildReport(&data, photoUrls)

	record, err := p.client.SubmitSurvey(ctx, report)
	if err != nil {
		log.Errorf("Submission for task %s failed: %v", sess.TaskId, err)
		return nil, err
	}

	p.manager.ClearDraft(ctx, sess.TaskId)
	log.Infof("Survey for task %s submitted as %s", sess.TaskId, record.Id)

	if p.OnSubmitted != nil {
		p.OnSubmitted(record)
	}
	return record, nil
}

// BuildReport reshapes the flat aggregate into the grouped backend contract.
func BuildReport(d *models.SurveyData, photoUrls []string) *models.SurveyReport {
	return &models.SurveyReport{
		TaskId:       d.TaskId,
		VillageId:    d.VillageId,
		VillageName:  d.VillageName,
		DisasterType: d.DisasterType,
		SurveyDate:   d.SurveyDate,
		GPSLocation:  d.GPSLocation,

		AffectedHouseholds:  d.AffectedHouseholds,
		AffectedPeople:      d.AffectedPeople,
		DeadCount:           d.DeadCount,
		MissingCount:        d.MissingCount,
		InjuredCount:        d.InjuredCount,
		EvacuatedPeople:     d.EvacuatedPeople,
		EvacuatedHouseholds: d.EvacuatedHouseholds,

		DamageAssessment: models.DamageAssessment{
			Buildings:   d.Buildings,
			Agriculture: d.Agriculture,
			Utilities:   d.Utilities,
		},

		ReliefOperations: d.ReliefOperations,
		Resources:        d.Resources,
		Operations:       d.Operations,

		ReportType: d.ReportType,
		PhotoUrls:  photoUrls,
		Polygon:    d.Polygon,
	}
}
