package discussion

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"opendebate/backend/internal/hub"
	"opendebate/backend/internal/models"
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
	))

	return db
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

// newTestDiscussion sets up two users with a discussion between them.
func newTestDiscussion(t *testing.T, db *gorm.DB, svc *Service) (models.User, models.User, *models.Discussion) {
	t.Helper()
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	debate := createTestDebate(t, db)

	disc, err := svc.CreateDiscussionAndReadCheckpoints(nil, debate.ID, alice.ID, bob.ID)
	require.NoError(t, err)
	return alice, bob, disc
}

func checkpointOf(t *testing.T, db *gorm.DB, discussionID, userID uint) models.ReadCheckpoint {
	t.Helper()
	var cp models.ReadCheckpoint
	require.NoError(t, db.Where("discussion_id = ? AND user_id = ?", discussionID, userID).First(&cp).Error)
	return cp
}

func TestCreateDiscussionAndReadCheckpoints(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, bob, disc := newTestDiscussion(t, db, svc)

	for _, userID := range []uint{alice.ID, bob.ID} {
		cp := checkpointOf(t, db, disc.ID, userID)
		assert.Nil(t, cp.LastMessageReadID)
		assert.Nil(t, cp.ReadAt)
	}
}

func TestPostMessageUpdatesOwnCheckpointOnly(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, bob, disc := newTestDiscussion(t, db, svc)

	message, err := svc.PostMessage(alice.ID, disc.ID, "  opening argument  ")
	require.NoError(t, err)
	assert.Equal(t, "opening argument", message.Text, "whitespace is trimmed")

	aliceCp := checkpointOf(t, db, disc.ID, alice.ID)
	require.NotNil(t, aliceCp.LastMessageReadID)
	assert.Equal(t, message.ID, *aliceCp.LastMessageReadID)
	assert.NotNil(t, aliceCp.ReadAt)

	bobCp := checkpointOf(t, db, disc.ID, bob.ID)
	assert.Nil(t, bobCp.LastMessageReadID)
	assert.Nil(t, bobCp.ReadAt)
}

func TestPostMessageValidation(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, _, disc := newTestDiscussion(t, db, svc)

	_, err := svc.PostMessage(alice.ID, disc.ID, "   ")
	assert.ErrorIs(t, err, apperrors.ErrEmptyMessage)

	_, err = svc.PostMessage(alice.ID, disc.ID, strings.Repeat("a", maxMessageLength+1))
	assert.ErrorIs(t, err, apperrors.ErrMessageTooLong)

	outsider := createTestUser(t, db, "outsider")
	_, err = svc.PostMessage(outsider.ID, disc.ID, "let me in")
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestReadMessagesFirstOpenOfEmptyDiscussion(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	_, bob, disc := newTestDiscussion(t, db, svc)

	numRead, err := svc.ReadMessages(bob.ID, disc.ID)
	require.NoError(t, err)
	assert.Zero(t, numRead)

	cp := checkpointOf(t, db, disc.ID, bob.ID)
	assert.Nil(t, cp.LastMessageReadID, "opening an empty discussion reads no message")
	require.NotNil(t, cp.ReadAt, "but it still counts as opened")
	openedAt := *cp.ReadAt

	// A second open of a still-empty discussion changes nothing.
	numRead, err = svc.ReadMessages(bob.ID, disc.ID)
	require.NoError(t, err)
	assert.Zero(t, numRead)
	cp = checkpointOf(t, db, disc.ID, bob.ID)
	require.NotNil(t, cp.ReadAt)
	assert.WithinDuration(t, openedAt, *cp.ReadAt, time.Millisecond)
}

func TestReadMessagesAdvancesCheckpoint(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, bob, disc := newTestDiscussion(t, db, svc)

	_, err := svc.PostMessage(alice.ID, disc.ID, "first")
	require.NoError(t, err)
	second, err := svc.PostMessage(alice.ID, disc.ID, "second")
	require.NoError(t, err)

	numRead, err := svc.ReadMessages(bob.ID, disc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), numRead)

	cp := checkpointOf(t, db, disc.ID, bob.ID)
	require.NotNil(t, cp.LastMessageReadID)
	assert.Equal(t, second.ID, *cp.LastMessageReadID)

	// Nothing new: reading again is a no-op.
	numRead, err = svc.ReadMessages(bob.ID, disc.ID)
	require.NoError(t, err)
	assert.Zero(t, numRead)

	third, err := svc.PostMessage(alice.ID, disc.ID, "third")
	require.NoError(t, err)

	numRead, err = svc.ReadMessages(bob.ID, disc.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), numRead)
	cp = checkpointOf(t, db, disc.ID, bob.ID)
	assert.Equal(t, third.ID, *cp.LastMessageReadID)
}

func TestUnreadCountAcrossDiscussions(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, bob, disc := newTestDiscussion(t, db, svc)

	for _, text := range []string{"one", "two", "three"} {
		_, err := svc.PostMessage(alice.ID, disc.ID, text)
		require.NoError(t, err)
	}

	count, err := svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	// The author is caught up with their own messages.
	count, err = svc.UnreadCount(alice.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.ReadMessages(bob.ID, disc.ID)
	require.NoError(t, err)
	count, err = svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.PostMessage(alice.ID, disc.ID, "four")
	require.NoError(t, err)
	count, err = svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Archiving hides the discussion from the badge.
	_, err = svc.SetArchived(bob.ID, disc.ID, true)
	require.NoError(t, err)
	count, err = svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.SetArchived(bob.ID, disc.ID, false)
	require.NoError(t, err)
	count, err = svc.UnreadCount(bob.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestSetArchivedIsPerParticipant(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, bob, disc := newTestDiscussion(t, db, svc)

	updated, err := svc.SetArchived(alice.ID, disc.ID, true)
	require.NoError(t, err)

	aliceArchived, _ := updated.IsArchivedFor(alice.ID)
	bobArchived, _ := updated.IsArchivedFor(bob.ID)
	assert.True(t, aliceArchived)
	assert.False(t, bobArchived)

	outsider := createTestUser(t, db, "outsider")
	_, err = svc.SetArchived(outsider.ID, disc.ID, true)
	assert.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestDeleteMessageRepairsCheckpoints(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, bob, disc := newTestDiscussion(t, db, svc)

	first, err := svc.PostMessage(alice.ID, disc.ID, "first")
	require.NoError(t, err)
	second, err := svc.PostMessage(alice.ID, disc.ID, "second")
	require.NoError(t, err)

	_, err = svc.ReadMessages(bob.ID, disc.ID)
	require.NoError(t, err)
	cp := checkpointOf(t, db, disc.ID, bob.ID)
	require.NotNil(t, cp.LastMessageReadID)
	require.Equal(t, second.ID, *cp.LastMessageReadID)

	// Deleting the pointed-at message moves the checkpoint back one.
	require.NoError(t, svc.DeleteMessage(alice.ID, second.ID))
	cp = checkpointOf(t, db, disc.ID, bob.ID)
	require.NotNil(t, cp.LastMessageReadID)
	assert.Equal(t, first.ID, *cp.LastMessageReadID)
	assert.NotNil(t, cp.ReadAt)

	// Deleting the last remaining message leaves an opened checkpoint
	// pointing at nothing.
	require.NoError(t, svc.DeleteMessage(alice.ID, first.ID))
	cp = checkpointOf(t, db, disc.ID, bob.ID)
	assert.Nil(t, cp.LastMessageReadID)
	assert.NotNil(t, cp.ReadAt)
}

func TestDeleteMessageOnlyByAuthor(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice, bob, disc := newTestDiscussion(t, db, svc)

	message, err := svc.PostMessage(alice.ID, disc.ID, "mine")
	require.NoError(t, err)

	err = svc.DeleteMessage(bob.ID, message.ID)
	assert.Equal(t, apperrors.CodeFailedPrecondition, apperrors.CodeOf(err))

	err = svc.DeleteMessage(alice.ID, 999999999)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))
}

func TestListDiscussionsOrderingAndFilters(t *testing.T) {
	db := openTestDB(t)
	svc := NewService(db, hub.NewHub())

	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")
	debate := createTestDebate(t, db)

	older, err := svc.CreateDiscussionAndReadCheckpoints(nil, debate.ID, alice.ID, bob.ID)
	require.NoError(t, err)
	newer, err := svc.CreateDiscussionAndReadCheckpoints(nil, debate.ID, alice.ID, carol.ID)
	require.NoError(t, err)

	// A fresh message bumps the older discussion to the top of Alice's list.
	_, err = svc.PostMessage(bob.ID, older.ID, "still here?")
	require.NoError(t, err)

	summaries, err := svc.ListDiscussions(alice.ID, "", 0, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, older.ID, summaries[0].Discussion.ID)
	assert.Equal(t, newer.ID, summaries[1].Discussion.ID)
	assert.True(t, summaries[0].IsUnread, "never-opened discussion with a message is unread")

	_, err = svc.SetArchived(alice.ID, newer.ID, true)
	require.NoError(t, err)

	active, err := svc.ListDiscussions(alice.ID, "active", 0, 10)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, older.ID, active[0].Discussion.ID)

	archived, err := svc.ListDiscussions(alice.ID, "archived", 0, 10)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, newer.ID, archived[0].Discussion.ID)
	assert.True(t, archived[0].IsArchivedForMe)
}
