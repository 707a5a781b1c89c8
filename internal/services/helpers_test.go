package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/laconfe/internal/database"
	"github.com/example/laconfe/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:laconfe_%s?mode=memory&cache=shared", uuid.NewString())

	cfg := database.GormConfig()
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Room{}, &models.Promo{}, &models.Payment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, email Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, email)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fakeGateway struct {
	resp   *GatewayResponse
	err    error
	fields map[string]string
}

func (g *fakeGateway) Register(_ context.Context, fields map[string]string) (*GatewayResponse, error) {
	g.fields = fields
	return g.resp, g.err
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{FirstName: "Ana", LastName: "Lopez", Email: email}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func seedRoom(t *testing.T, db *gorm.DB, roomID string, count int) *models.Room {
	t.Helper()
	available := models.RoomAvailable
	if count == 0 {
		available = models.RoomUnavailable
	}
	room := &models.Room{
		RoomID:    roomID,
		Name:      "Double Room",
		Price:     450,
		Guests:    2,
		Count:     count,
		Available: available,
	}
	if err := db.Create(room).Error; err != nil {
		t.Fatalf("seed room: %v", err)
	}
	return room
}

func seedPromo(t *testing.T, db *gorm.DB, code string, uses int) *models.Promo {
	t.Helper()
	promo := &models.Promo{Code: code, Amount: uses, Discount: 0.1, RoomType: "double", DateActive: time.Now().UTC()}
	if err := db.Create(promo).Error; err != nil {
		t.Fatalf("seed promo: %v", err)
	}
	return promo
}

func seedPayment(t *testing.T, db *gorm.DB, p models.Payment) *models.Payment {
	t.Helper()
	if p.Status == "" {
		p.Status = models.PaymentPending
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed payment: %v", err)
	}
	return &p
}

func reloadRoom(t *testing.T, db *gorm.DB, roomID string) models.Room {
	t.Helper()
	var room models.Room
	if err := db.Where("room_id = ?", roomID).First(&room).Error; err != nil {
		t.Fatalf("reload room: %v", err)
	}
	return room
}

func reloadUser(t *testing.T, db *gorm.DB, id uuid.UUID) models.User {
	t.Helper()
	var user models.User
	if err := db.First(&user, "id = ?", id).Error; err != nil {
		t.Fatalf("reload user: %v", err)
	}
	return user
}

func reloadPayment(t *testing.T, db *gorm.DB, mdOrder string) models.Payment {
	t.Helper()
	var p models.Payment
	if err := db.Where("md_order = ?", mdOrder).First(&p).Error; err != nil {
		t.Fatalf("reload payment: %v", err)
	}
	return p
}
