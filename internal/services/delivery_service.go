package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/field-agent/internal/constants"
	"github.com/benmeehan/field-agent/internal/models"
	"github.com/benmeehan/field-agent/pkg/backend"
	"github.com/benmeehan/field-agent/pkg/location"
	"github.com/benmeehan/field-agent/pkg/s3"
	"github.com/benmeehan/field-agent/pkg/session"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const archiveTimeout = 2 * time.Minute

// JobRunner runs background work.
type JobRunner interface {
	Submit(task func()) bool
}

// DeliveryService lists, cancels and signs the worker's deliveries.
type DeliveryService struct {
	backend backend.ClientInterface
	session session.SessionInterface
	locator LocationSource
	storage s3.ObjectStorageClient // optional proof archive
	bucket  string
	jobs    JobRunner
	logger  zerolog.Logger
}

// NewDeliveryService creates a new DeliveryService. storage may be nil to skip archiving.
func NewDeliveryService(backendClient backend.ClientInterface, sess session.SessionInterface, locator LocationSource,
	storage s3.ObjectStorageClient, bucket string, jobs JobRunner, logger zerolog.Logger) *DeliveryService {
	return &DeliveryService{
		backend: backendClient,
		session: sess,
		locator: locator,
		storage: storage,
		bucket:  bucket,
		jobs:    jobs,
		logger:  logger,
	}
}

// List returns the worker's deliveries, in progress first, then cancelled, then completed.
func (d *DeliveryService) List(ctx context.Context) ([]models.Delivery, error) {
	userID := d.session.UserID()
	if userID == "" {
		return nil, session.ErrNotLoggedIn
	}

	records, err := d.backend.Deliveries(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch deliveries: %w", err)
	}

	deliveries := make([]models.Delivery, 0, len(records))
	for _, record := range records {
		deliveries = append(deliveries, parseDelivery(record))
	}

	sort.SliceStable(deliveries, func(i, j int) bool {
		return statusRank(deliveries[i].Status) < statusRank(deliveries[j].Status)
	})

	d.logger.Debug().Int("count", len(deliveries)).Str("user_id", userID).Msg("Deliveries fetched")
	return deliveries, nil
}

// Cancel marks a delivery as cancelled.
func (d *DeliveryService) Cancel(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: delivery id is required", ErrInvalidRequest)
	}
	if d.session.UserID() == "" {
		return session.ErrNotLoggedIn
	}

	if err := d.backend.CancelDelivery(ctx, id); err != nil {
		return fmt.Errorf("failed to cancel delivery %s: %w", id, err)
	}
	d.logger.Info().Str("delivery_id", id).Msg("Delivery cancelled")
	return nil
}

// Sign submits the proof of delivery, archives the images and records where the delivery was signed.
// Archiving and the signing coordinate are best effort.
func (d *DeliveryService) Sign(ctx context.Context, proof models.DeliveryProof) error {
	proof.DeliveryID = strings.TrimSpace(proof.DeliveryID)
	if proof.DeliveryID == "" {
		return fmt.Errorf("%w: delivery id is required", ErrInvalidRequest)
	}
	if len(proof.Signature) == 0 {
		return fmt.Errorf("%w: signature is required", ErrInvalidRequest)
	}

	userID := d.session.UserID()
	if userID == "" {
		return session.ErrNotLoggedIn
	}

	err := d.backend.SignDelivery(ctx, backend.DeliverySignature{
		DeliveryID:   proof.DeliveryID,
		Signature:    base64.StdEncoding.EncodeToString(proof.Signature),
		InvoicePhoto: base64.StdEncoding.EncodeToString(proof.InvoicePhoto),
		Comment:      proof.Comment,
		Weight:       proof.Weight,
		Satisfaction: SatisfactionNumber(proof.Satisfaction),
	})
	if err != nil {
		return fmt.Errorf("failed to sign delivery %s: %w", proof.DeliveryID, err)
	}
	d.logger.Info().Str("delivery_id", proof.DeliveryID).Msg("Delivery signed")

	d.archive(proof)

	pos := bestEffortPosition(ctx, d.locator, location.FreshnessForce, d.logger)
	err = d.backend.SignCoordinate(ctx, backend.SignCoordinate{
		DeliveryID: proof.DeliveryID,
		UserID:     userID,
		Latitude:   pos.Latitude,
		Longitude:  pos.Longitude,
		Altitude:   pos.Altitude,
	})
	if err != nil {
		d.logger.Error().Err(err).Str("delivery_id", proof.DeliveryID).Msg("Failed to record signing coordinate")
	}
	return nil
}

// archive uploads the proof images in the background.
func (d *DeliveryService) archive(proof models.DeliveryProof) {
	if d.storage == nil {
		return
	}

	prefix := fmt.Sprintf("deliveries/%s/%s", proof.DeliveryID, uuid.New().String())
	task := func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		d.upload(ctx, prefix+"-signature.png", proof.Signature, "image/png")
		if len(proof.InvoicePhoto) > 0 {
			d.upload(ctx, prefix+"-invoice.jpg", proof.InvoicePhoto, "image/jpeg")
		}
	}

	if d.jobs == nil || !d.jobs.Submit(task) {
		task()
	}
}

func (d *DeliveryService) upload(ctx context.Context, objectName string, data []byte, contentType string) {
	result, err := d.storage.UploadFile(ctx, d.bucket, objectName, bytes.NewReader(data), int64(len(data)), contentType)
	if err != nil {
		d.logger.Error().Err(err).Str("object", objectName).Msg("Failed to archive proof of delivery")
		return
	}
	d.logger.Info().Str("object", result.ObjectName).Int64("size", result.Size).Msg("Proof of delivery archived")
}

// SatisfactionNumber maps the satisfaction choice to the backend code.
func SatisfactionNumber(satisfaction string) int {
	switch strings.ToLower(strings.TrimSpace(satisfaction)) {
	case constants.SatisfactionHappy:
		return 1
	case constants.SatisfactionNeutral:
		return 2
	case constants.SatisfactionSad:
		return 3
	default:
		return 0
	}
}

// parseDelivery reads a backend record, accepting the field spellings used by different backend versions.
func parseDelivery(record map[string]any) models.Delivery {
	delivery := models.Delivery{
		ID:      firstPresent(record, "id", "delivery_id"),
		Client:  firstPresent(record, "client", "client_name", "customer"),
		Address: firstPresent(record, "Address", "address"),
		Contact: firstPresent(record, "Contact", "contact"),
		Detail:  firstPresent(record, "Detail", "detail", "description"),
	}

	if leave, ok := present(record, "date_time_leave"); ok {
		delivery.Time = clockTime(leave)
	} else {
		delivery.Time = firstPresent(record, "time", "delivery_time", "schedule_time")
	}

	arrival, _ := present(record, "date_time_arrival")
	switch returnFlag(record["return_flag"]) {
	case 1:
		delivery.Status = constants.DeliveryStatusCancelled
	case 0:
		if strings.TrimSpace(arrival) != "" {
			delivery.Status = constants.DeliveryStatusCompleted
		} else {
			delivery.Status = constants.DeliveryStatusInProgress
		}
	default:
		delivery.Status = constants.DeliveryStatusInProgress
	}

	return delivery
}

// leaveLayouts are the timestamp formats the backend has sent for date_time_leave.
var leaveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// clockTime reduces a departure timestamp to HH:mm. Values in any other format are returned as sent.
func clockTime(leave string) string {
	trimmed := strings.TrimSpace(leave)
	for _, layout := range leaveLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.Format("15:04")
		}
	}
	return leave
}

// returnFlag decodes return_flag sent as a number, a numeric string or a boolean. Unknown values yield -1.
func returnFlag(v any) int {
	switch t := v.(type) {
	case bool:
		if t {
			return 1
		}
		return 0
	case nil:
		return -1
	default:
		n, err := strconv.Atoi(strings.TrimSpace(backend.StringValue(t)))
		if err != nil {
			return -1
		}
		return n
	}
}

// present returns the value of the first key that exists and is not null.
func present(record map[string]any, key string) (string, bool) {
	v, ok := record[key]
	if !ok || v == nil {
		return "", false
	}
	return backend.StringValue(v), true
}

func firstPresent(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if s, ok := present(record, key); ok {
			return s
		}
	}
	return ""
}

func statusRank(status string) int {
	switch status {
	case constants.DeliveryStatusInProgress:
		return 0
	case constants.DeliveryStatusCancelled:
		return 1
	default:
		return 2
	}
}
