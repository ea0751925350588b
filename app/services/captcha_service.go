package services

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// CaptchaService guards the back-office login with a rotate captcha.
// GenerateRotate issues a challenge (two base64 images plus an ID); the
// admin UI renders them and submits the rotation angle the operator
// applied. Challenges live in memory with a TTL and are consumed on the
// first verification attempt, pass or fail.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
}

type captchaServiceImpl struct {
	rotator    rotate.Captcha
	challenges *challengeStore
	padding    int // acceptable angle delta in degrees
}

// NewCaptchaService builds a rotate-mode captcha service. ttl bounds how
// long an issued challenge stays answerable; padding is the tolerated
// angle difference; imgSizePx is the square image size in pixels.
func NewCaptchaService(ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(captchaBackdrops(4, imgSizePx)),
	)

	return &captchaServiceImpl{
		rotator:    builder.Make(),
		challenges: newChallengeStore(ttl),
		padding:    padding,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	data, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	masterB64, err := data.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := data.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	challengeID := uuid.New().String()
	s.challenges.Put(challengeID, data.GetData().Angle)

	return &RotateChallenge{
		ID:                challengeID,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	targetAngle, ok := s.challenges.Take(challengeID)
	if !ok {
		return false
	}
	return rotate.Validate(int(math.Round(userAngle)), targetAngle, s.padding)
}

type challengeEntry struct {
	angle     int
	expiresAt time.Time
}

// challengeStore is an in-memory TTL map of pending challenges. A
// background goroutine sweeps expired entries every minute.
type challengeStore struct {
	mu      sync.Mutex
	entries map[string]challengeEntry
	ttl     time.Duration
}

func newChallengeStore(ttl time.Duration) *challengeStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	cs := &challengeStore{
		entries: make(map[string]challengeEntry),
		ttl:     ttl,
	}
	go cs.sweep()
	return cs
}

func (cs *challengeStore) Put(id string, angle int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.entries[id] = challengeEntry{
		angle:     angle,
		expiresAt: time.Now().Add(cs.ttl),
	}
}

// Take removes and returns the stored angle; single-use by design of the
// login flow, so a failed attempt requires a fresh challenge.
func (cs *challengeStore) Take(id string) (int, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	entry, ok := cs.entries[id]
	if !ok {
		return 0, false
	}
	delete(cs.entries, id)
	if time.Now().After(entry.expiresAt) {
		return 0, false
	}
	return entry.angle, true
}

func (cs *challengeStore) sweep() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		now := time.Now()
		cs.mu.Lock()
		for id, entry := range cs.entries {
			if now.After(entry.expiresAt) {
				delete(cs.entries, id)
			}
		}
		cs.mu.Unlock()
	}
}

// captchaBackdrops renders simple procedural backgrounds so no image
// assets need to ship with the binary.
func captchaBackdrops(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}
	imgs := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		imgs = append(imgs, newStripedBackdrop(size, size, i))
	}
	return imgs
}

func newStripedBackdrop(w, h, seed int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	rnd := rand.New(rand.NewSource(int64(seed) + 42))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// diagonal banding with per-pixel noise
			band := uint8(160 + 40*math.Sin(float64(x+y)/18.0))
			noise := uint8(rnd.Intn(24))
			rgba.Set(x, y, color.RGBA{R: band - noise, G: band, B: 220 - band/3, A: 255})
		}
	}
	fillRect(rgba, w/8, h/6, w/2, h/14, color.RGBA{R: 255, G: 255, B: 255, A: 28})
	fillRect(rgba, w/3, 2*h/3, w/2, h/12, color.RGBA{A: 22})
	return rgba
}

func fillRect(dst *image.RGBA, x, y, w, h int, c color.RGBA) {
	draw.Draw(dst, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Over)
}
