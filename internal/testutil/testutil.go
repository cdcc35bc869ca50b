// Package testutil provides SQLite-backed fixtures for repository, service
// and controller tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"

	"sia_backend/internal/model"
	"sia_backend/pkg/database"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// DB opens a fresh file-backed SQLite database with every table migrated.
// The pool is capped at one connection so concurrent transactions queue on
// the pool the way row locks make them queue on a server database.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return db
}

func SeedUser(tb testing.TB, db *gorm.DB, email string) *model.User {
	tb.Helper()
	u := &model.User{Email: email, Password: "x"}
	if err := db.Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedProfile(tb testing.TB, db *gorm.DB, userID string) *model.PatientProfile {
	tb.Helper()
	p := &model.PatientProfile{
		UserID:    userID,
		Name:      "Asha",
		Age:       "64",
		City:      "Pune",
		Language:  "english",
		Diagnosis: "broca's aphasia",
		Severity:  "moderate",
	}
	if err := db.Create(p).Error; err != nil {
		tb.Fatalf("seed profile: %v", err)
	}
	return p
}

// FreeTextItem builds an unsaved FREE_TEXT item at the given order with one
// descriptive hint.
func FreeTextItem(order, maxRetries int) model.ActivityItem {
	return model.ActivityItem{
		ActivityType: model.ActivityTypeFreeText,
		MaxRetries:   maxRetries,
		Status:       model.ItemNotTerminated,
		Position:     order,
		QuestionConfig: datatypes.NewJSONType(model.QuestionConfig{
			ActivityType: model.ActivityTypeFreeText,
			Order:        order,
			Hints: []model.Hint{{
				ActivityType: model.ActivityTypeFreeText,
				Kind:         model.HintDescriptive,
				Text:         fmt.Sprintf("hint for question %d", order+1),
			}},
			FreeTextQuestion: &model.FreeTextQuestion{Prompt: fmt.Sprintf("Question %d?", order+1)},
		}),
		QuestionEvaluationConfig: datatypes.NewJSONType(model.QuestionEvaluationConfig{
			ActivityType:       model.ActivityTypeFreeText,
			FreeTextEvaluation: &model.FreeTextEvaluation{ExpectedAnswer: fmt.Sprintf("Answer %d", order+1)},
		}),
	}
}

// SeedActivity stores an IDLE activity owned by userID with n FREE_TEXT
// items, each allowing maxRetries attempts. Items come back in order.
func SeedActivity(tb testing.TB, db *gorm.DB, userID string, n, maxRetries int) (*model.Activity, []model.ActivityItem) {
	tb.Helper()
	title := "Test Activity"
	a := &model.Activity{UserID: userID, Status: model.ActivityIdle, GeneratedTitle: &title}
	if err := db.Create(a).Error; err != nil {
		tb.Fatalf("seed activity: %v", err)
	}
	items := make([]model.ActivityItem, 0, n)
	for i := 0; i < n; i++ {
		item := FreeTextItem(i, maxRetries)
		item.ActivityID = a.ID
		if err := db.Create(&item).Error; err != nil {
			tb.Fatalf("seed item %d: %v", i, err)
		}
		items = append(items, item)
	}
	return a, items
}

func ReloadItem(tb testing.TB, db *gorm.DB, id string) model.ActivityItem {
	tb.Helper()
	var item model.ActivityItem
	if err := db.First(&item, "id = ?", id).Error; err != nil {
		tb.Fatalf("reload item: %v", err)
	}
	return item
}

func ReloadActivity(tb testing.TB, db *gorm.DB, id string) model.Activity {
	tb.Helper()
	var a model.Activity
	if err := db.First(&a, "id = ?", id).Error; err != nil {
		tb.Fatalf("reload activity: %v", err)
	}
	return a
}

func CountAnswers(tb testing.TB, db *gorm.DB, itemID string) int64 {
	tb.Helper()
	var n int64
	if err := db.Model(&model.ActivityAnswer{}).Where("activity_item_id = ?", itemID).Count(&n).Error; err != nil {
		tb.Fatalf("count answers: %v", err)
	}
	return n
}
