package registrar

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgraphileRegister(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := NewPostgraphile(db, "app")
	regs := Plan(relations)
	ctx := context.Background()
	require.NoError(t, p.Prepare(ctx, nil))

	mock.ExpectExec(regexp.QuoteMeta(
		`comment on constraint "photo_owner_id_fkey" on "app"."photo" is E'@fieldName owner';`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		`comment on constraint "photo_owner_id_fkey" on "app"."photo" is E'@fieldName owner\n@foreignFieldName photos';`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(
		`comment on constraint "user_photo_user_id_fkey" on "app"."user_photo" is E'@foreignFieldName likes';`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, p.Register(ctx, regs[0]))
	require.NoError(t, p.Register(ctx, regs[1]))
	require.NoError(t, p.Register(ctx, regs[2]))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgraphileRegisterError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("comment on constraint").WillReturnError(errors.New("constraint does not exist"))

	p := NewPostgraphile(db, "")
	failures := RegisterAll(context.Background(), p, Plan(relations)[:1], quiet, nil)
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].Error(), `photo.owner/object: comment on photo.photo_owner_id_fkey`)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSmartComment(t *testing.T) {
	assert.Equal(t, `E'@fieldName it\'s'`, smartComment(map[string]string{"fieldName": "it's"}))
}
