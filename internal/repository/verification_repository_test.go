package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backtrackers-api/internal/models"
)

var verificationRowColumns = []string{"id", "item_id", "item_type", "proof", "question", "answer", "claimant_id", "verified_by", "note", "status", "decided_at", "created_at", "updated_at"}

func TestVerificationCreateDuplicatePending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectExec("INSERT INTO verifications").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Verification{ItemID: "i1", ItemType: models.KindLost, Status: models.VerificationPending})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestVerificationFindPendingByItem(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(verificationRowColumns).
		AddRow("v1", "i1", "lost", "receipt.jpg", "What colour?", "brown", "c1", nil, nil, "pending", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM verifications WHERE item_type = $1 AND item_id = $2 AND status = $3 LIMIT 1")).
		WithArgs(models.KindLost, "i1", models.VerificationPending).
		WillReturnRows(rows)

	v, err := repo.FindPendingByItem(context.Background(), models.KindLost, "i1")
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
	assert.Equal(t, models.KindLost, v.ItemType)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationDecideOnlyPending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE verifications SET status = $2")).
		WithArgs("v1", models.VerificationApproved, "admin-1", nil, sqlmock.AnyArg(), models.VerificationPending).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Decide(context.Background(), models.VerificationDecision{ID: "v1", To: models.VerificationApproved, VerifiedBy: "admin-1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationListByItem(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(verificationRowColumns).
		AddRow("v2", "i1", "found", "", "Serial?", "X1", "c1", "o1", "mismatch", "rejected", now, now, now).
		AddRow("v1", "i1", "found", "", "Serial?", "X2", "c2", "o1", nil, "approved", now, now, now)
	mock.ExpectQuery("FROM verifications WHERE item_type = \\$1 AND item_id = \\$2 ORDER BY created_at DESC").
		WillReturnRows(rows)

	list, err := repo.ListByItem(context.Background(), models.KindFound, "i1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].Note)
	assert.Equal(t, "mismatch", *list[0].Note)
}

func TestVerificationMalformedIDIsMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)
	malformed := &pq.Error{Code: "22P02"}

	mock.ExpectQuery("FROM verifications WHERE id").WithArgs("abc").WillReturnError(malformed)
	_, err := repo.FindByID(context.Background(), "abc")
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery("UPDATE verifications SET status").WillReturnError(malformed)
	_, err = repo.Decide(context.Background(), models.VerificationDecision{ID: "abc", To: models.VerificationApproved, VerifiedBy: "o1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)

	mock.ExpectQuery("FROM verifications WHERE item_type").WillReturnError(malformed)
	list, err := repo.ListByItem(context.Background(), models.KindLost, "abc")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVerificationMessages(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewVerificationRepository(db)

	mock.ExpectExec("INSERT INTO verification_messages").
		WithArgs(sqlmock.AnyArg(), "v1", "c1", models.MessageRoleClaimant, "It has a red strap", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	msg := &models.VerificationMessage{VerificationID: "v1", SenderID: "c1", SenderRole: models.MessageRoleClaimant, Body: "It has a red strap"}
	require.NoError(t, repo.CreateMessage(context.Background(), msg))
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "verification_id", "sender_id", "sender_role", "body", "created_at"}).
		AddRow("m1", "v1", "c1", "claimant", "It has a red strap", now).
		AddRow("m2", "v1", "o1", "owner", "Which side?", now.Add(time.Minute))
	mock.ExpectQuery(regexp.QuoteMeta("FROM verification_messages WHERE verification_id = $1 ORDER BY created_at ASC")).
		WithArgs("v1").
		WillReturnRows(rows)

	list, err := repo.ListMessages(context.Background(), "v1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.MessageRoleOwner, list[1].SenderRole)
	assert.NoError(t, mock.ExpectationsWereMet())
}
