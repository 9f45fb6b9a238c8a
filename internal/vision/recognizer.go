package vision

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"carprobe/internal/logging"
	"carprobe/internal/textutil"
)

// Confidence assigned to parsed plates.
const (
	ConfidenceClean   = 0.9
	ConfidencePartial = 0.5
)

// Sentinel replies for images without a readable plate.
const (
	NotVisible = "NOT_VISIBLE"
	NotACar    = "NOT_A_CAR"
)

// Instruction is sent with every image.
const Instruction = `You are reading UK vehicle registration plates from a photo in a car sale listing.
Reply with exactly one line in one of these forms:
License plate: <PLATE>
NOT_VISIBLE
NOT_A_CAR
Use NOT_VISIBLE when the photo shows a car but no plate can be read, and NOT_A_CAR when the photo does not show a car.
If only part of the plate is readable, write the plate with ? for each unreadable character, for example: License plate: AB1? C?E`

// A plate is one or two groups of plate characters. The second group is the
// three or four character tail of a spaced plate; anything after it is prose.
var platePattern = regexp.MustCompile(`(?i)licen[cs]e\s+plate\s*:\s*([a-z0-9?]{1,8})(?:\s+([a-z0-9?]{3,4}))?(?:[^a-z0-9?]|$)`)

const maxPlateChars = 8

// ParsePlate extracts a plate from a model reply. Sentinel or unparseable
// replies return ("", 0). Plates containing ? are partial.
func ParsePlate(text string) (string, float64) {
	upper := strings.ToUpper(text)
	if strings.Contains(upper, NotVisible) || strings.Contains(upper, NotACar) {
		return "", 0
	}
	m := platePattern.FindStringSubmatch(text)
	if m == nil {
		return "", 0
	}
	raw := m[1]
	if m[2] != "" && len(m[1]) <= 4 && len(m[1])+len(m[2]) <= maxPlateChars {
		raw += " " + m[2]
	}
	plate := textutil.NormalizePlate(raw)
	if len(textutil.SanitizeRegistration(plate)) < 2 {
		return "", 0
	}
	if strings.Contains(plate, "?") {
		return plate, ConfidencePartial
	}
	return plate, ConfidenceClean
}

// Partial reports whether plate has unreadable characters.
func Partial(plate string) bool {
	return strings.Contains(plate, "?")
}

// Detection is the first plate read from a listing's images.
type Detection struct {
	Plate      string
	Confidence float64
	ImageURL   string
}

// Scan is the outcome of checking a listing's images. Failed counts images
// whose request errored or was abandoned, so a scan with no plate and no
// failures is a definitive answer.
type Scan struct {
	Detection Detection
	Found     bool
	Failed    int
}

// Describer sends one image to a vision model.
type Describer interface {
	DescribeImage(ctx context.Context, instruction, imageURL string) (string, error)
}

// Recognizer reads plates from listing images.
type Recognizer struct {
	client Describer
	logger *slog.Logger
}

// NewRecognizer constructs a recognizer backed by client.
func NewRecognizer(client Describer, logger *slog.Logger) *Recognizer {
	return &Recognizer{client: client, logger: logging.NewComponentLogger(logger, "vision")}
}

// Recognize checks images in order and stops at the first plate found.
// Per-image failures are logged, counted and skipped.
func (r *Recognizer) Recognize(ctx context.Context, imageURLs []string) Scan {
	logger := logging.WithContext(ctx, r.logger)
	var scan Scan
	for i, imageURL := range imageURLs {
		imageURL = strings.TrimSpace(imageURL)
		if imageURL == "" {
			continue
		}
		if ctx.Err() != nil {
			scan.Failed++
			return scan
		}
		reply, err := r.client.DescribeImage(ctx, Instruction, imageURL)
		if err != nil {
			scan.Failed++
			logging.WarnWithContext(logger, "plate recognition failed for image", "vision_image_failed",
				logging.Int("image_index", i),
				logging.String("image_url", imageURL),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check llm.api_key and vision.model"),
			)
			continue
		}
		plate, confidence := ParsePlate(reply)
		if plate == "" {
			logger.Debug("no plate in image", logging.Int("image_index", i), logging.String("reply", reply))
			continue
		}
		logger.Info("plate detected",
			logging.Int("image_index", i),
			logging.String("plate", plate),
			logging.Float64("confidence", confidence),
		)
		scan.Detection = Detection{Plate: plate, Confidence: confidence, ImageURL: imageURL}
		scan.Found = true
		return scan
	}
	return scan
}
