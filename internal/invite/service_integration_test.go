package invite

import (
	"fmt"
	"os"
	"testing"
	"time"

	"opendebate/backend/internal/discussion"
	"opendebate/backend/internal/hub"
	"opendebate/backend/internal/models"
	"opendebate/backend/internal/notification"
	"opendebate/backend/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Debate{},
		&models.Discussion{},
		&models.Message{},
		&models.ReadCheckpoint{},
		&models.Notification{},
		&models.Invite{},
		&models.InviteUse{},
	))

	return db
}

func newTestService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	h := hub.NewHub()
	discussions := discussion.NewService(db, h)
	notifications := notification.NewService(db, h)
	return NewService(db, discussions, notifications)
}

func createTestUser(t *testing.T, db *gorm.DB, nickname string) models.User {
	t.Helper()
	suffix := time.Now().UnixNano()
	user := models.User{
		Nickname:     fmt.Sprintf("%s-%d", nickname, suffix),
		Email:        fmt.Sprintf("%s-%d@example.com", nickname, suffix),
		PasswordHash: "x",
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestDebate(t *testing.T, db *gorm.DB) models.Debate {
	t.Helper()
	debate := models.Debate{
		Title: "Test debate",
		Slug:  fmt.Sprintf("test-debate-%d", time.Now().UnixNano()),
	}
	require.NoError(t, db.Create(&debate).Error)
	return debate
}

func TestCreateInviteGeneratesUniqueCodes(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")
	debate := createTestDebate(t, db)

	first, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)
	second, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)

	assert.Len(t, first.Code, 32)
	assert.NotEqual(t, first.Code, second.Code)
	assert.Equal(t, debate.ID, first.DebateID)
}

func TestCreateInviteUnknownDebate(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")

	_, err := svc.Create(host.ID, "no-such-debate")
	assert.ErrorIs(t, err, apperrors.ErrDebateNotFound)
}

func TestAcceptInviteCreatesDiscussionAndNotifiesCreator(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")
	guest := createTestUser(t, db, "guest")
	debate := createTestDebate(t, db)

	inv, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)

	use, err := svc.Accept(inv.Code, guest.ID)
	require.NoError(t, err)

	var disc models.Discussion
	require.NoError(t, db.First(&disc, use.DiscussionID).Error)
	assert.Equal(t, debate.ID, disc.DebateID)
	assert.True(t, disc.HasParticipant(host.ID))
	assert.True(t, disc.HasParticipant(guest.ID))

	var checkpoints []models.ReadCheckpoint
	require.NoError(t, db.Where("discussion_id = ?", disc.ID).Find(&checkpoints).Error)
	require.Len(t, checkpoints, 2)
	for _, cp := range checkpoints {
		assert.Nil(t, cp.LastMessageReadID)
		assert.Nil(t, cp.ReadAt)
	}

	var notifications []models.Notification
	require.NoError(t, db.Where("user_id = ?", host.ID).Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Contains(t, notifications[0].Message, guest.Nickname)
	assert.Contains(t, notifications[0].Message, debate.Title)
	assert.Equal(t, fmt.Sprintf("/discussions/%d", disc.ID), notifications[0].RedirectURL)
}

func TestAcceptInviteUnknownCode(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	guest := createTestUser(t, db, "guest")

	_, err := svc.Accept("definitely-not-a-code", guest.ID)
	assert.ErrorIs(t, err, apperrors.ErrInviteNotFound)
}

func TestAcceptOwnInviteRejected(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")
	debate := createTestDebate(t, db)

	inv, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)

	_, err = svc.Accept(inv.Code, host.ID)
	assert.ErrorIs(t, err, apperrors.ErrOwnInvite)

	var count int64
	require.NoError(t, db.Model(&models.Discussion{}).
		Where("debate_id = ?", debate.ID).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAcceptInviteTwiceRejected(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")
	guest := createTestUser(t, db, "guest")
	other := createTestUser(t, db, "other")
	debate := createTestDebate(t, db)

	inv, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)

	first, err := svc.Accept(inv.Code, guest.ID)
	require.NoError(t, err)

	_, err = svc.Accept(inv.Code, guest.ID)
	assert.ErrorIs(t, err, apperrors.ErrInviteAlreadyAccepted)

	// A different user may still redeem the same code; they get their own
	// discussion with the creator.
	second, err := svc.Accept(inv.Code, other.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.DiscussionID, second.DiscussionID)
}

func TestGetInviteByCode(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")
	debate := createTestDebate(t, db)

	inv, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)

	got, err := svc.GetByCode(inv.Code)
	require.NoError(t, err)
	assert.Equal(t, host.Nickname, got.Creator.Nickname)
	assert.Equal(t, debate.Title, got.Debate.Title)

	_, err = svc.GetByCode("missing")
	assert.ErrorIs(t, err, apperrors.ErrInviteNotFound)
}

func TestDeleteInviteOnlyByCreator(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")
	stranger := createTestUser(t, db, "stranger")
	debate := createTestDebate(t, db)

	inv, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)

	err = svc.Delete(inv.Code, stranger.ID)
	assert.ErrorIs(t, err, apperrors.ErrInviteNotFound)

	require.NoError(t, svc.Delete(inv.Code, host.ID))

	_, err = svc.GetByCode(inv.Code)
	assert.ErrorIs(t, err, apperrors.ErrInviteNotFound)
}

func TestListByCreatorNewestFirst(t *testing.T) {
	db := openTestDB(t)
	svc := newTestService(t, db)

	host := createTestUser(t, db, "host")
	other := createTestUser(t, db, "other")
	debate := createTestDebate(t, db)

	first, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)
	second, err := svc.Create(host.ID, debate.Slug)
	require.NoError(t, err)
	_, err = svc.Create(other.ID, debate.Slug)
	require.NoError(t, err)

	invites, err := svc.ListByCreator(host.ID, 0, 15)
	require.NoError(t, err)
	require.Len(t, invites, 2)
	assert.Equal(t, second.Code, invites[0].Code)
	assert.Equal(t, first.Code, invites[1].Code)
}
