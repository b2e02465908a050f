package migrations

import (
	"context"
	"time"

	"git.handmade.network/hmn/postmerge/src/migration/types"
	"github.com/jackc/pgx/v5"
)

func init() {
	registerMigration(InitialForumSchema{})
}

type InitialForumSchema struct{}

func (m InitialForumSchema) Version() types.MigrationVersion {
	return types.MigrationVersion(time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC))
}

func (m InitialForumSchema) Name() string {
	return "InitialForumSchema"
}

func (m InitialForumSchema) Description() string {
	return "Create forum, thread, post and the tables that hang off them"
}

func (m InitialForumSchema) Up(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		CREATE TABLE hmn_user (
			id SERIAL PRIMARY KEY,
			username VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL DEFAULT '',
			date_joined TIMESTAMP WITH TIME ZONE NOT NULL,
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			message_count INT NOT NULL DEFAULT 0 CHECK (message_count >= 0)
		);
		CREATE UNIQUE INDEX hmn_user_username ON hmn_user (LOWER(username));

		CREATE TABLE forum (
			id SERIAL PRIMARY KEY,
			slug VARCHAR(30) NOT NULL,
			name VARCHAR(255) NOT NULL,
			blurb TEXT NOT NULL DEFAULT '',
			count_messages BOOLEAN NOT NULL DEFAULT TRUE,
			thread_count INT NOT NULL DEFAULT 0,
			message_count INT NOT NULL DEFAULT 0,
			last_post_id INT
		);

		CREATE TABLE thread (
			id SERIAL PRIMARY KEY,
			forum_id INT NOT NULL REFERENCES forum (id) ON DELETE CASCADE,
			title VARCHAR(255) NOT NULL,
			reply_count INT NOT NULL DEFAULT 0,
			discussion_state INT NOT NULL DEFAULT 1,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			first_id INT,
			last_id INT
		);
		CREATE INDEX thread_forum_id ON thread (forum_id) WHERE NOT deleted;

		CREATE TABLE post (
			id SERIAL PRIMARY KEY,
			author_id INT REFERENCES hmn_user (id) ON DELETE SET NULL,
			thread_id INT NOT NULL REFERENCES thread (id) ON DELETE CASCADE,
			current_id INT NOT NULL DEFAULT 0,
			state INT NOT NULL DEFAULT 1,
			deleted BOOLEAN NOT NULL DEFAULT FALSE,
			postdate TIMESTAMP WITH TIME ZONE NOT NULL,
			position INT NOT NULL DEFAULT 0,
			like_count INT NOT NULL DEFAULT 0,
			attach_count INT NOT NULL DEFAULT 0,
			preview VARCHAR(100) NOT NULL DEFAULT ''
		);
		CREATE INDEX post_thread_id ON post (thread_id, postdate, id) WHERE NOT deleted;

		ALTER TABLE thread
			ADD CONSTRAINT thread_first_id_fkey FOREIGN KEY (first_id) REFERENCES post (id) ON DELETE SET NULL,
			ADD CONSTRAINT thread_last_id_fkey FOREIGN KEY (last_id) REFERENCES post (id) ON DELETE SET NULL;
		ALTER TABLE forum
			ADD CONSTRAINT forum_last_post_id_fkey FOREIGN KEY (last_post_id) REFERENCES post (id) ON DELETE SET NULL;

		CREATE TABLE post_version (
			id SERIAL PRIMARY KEY,
			post_id INT NOT NULL REFERENCES post (id) ON DELETE CASCADE,
			text_raw TEXT NOT NULL,
			text_parsed TEXT NOT NULL,
			date TIMESTAMP WITH TIME ZONE NOT NULL,
			edit_reason VARCHAR(255) NOT NULL DEFAULT '',
			editor_id INT REFERENCES hmn_user (id) ON DELETE SET NULL
		);
		CREATE INDEX post_version_post_id ON post_version (post_id);

		CREATE TABLE post_like (
			id SERIAL PRIMARY KEY,
			post_id INT NOT NULL REFERENCES post (id) ON DELETE CASCADE,
			like_user_id INT NOT NULL REFERENCES hmn_user (id) ON DELETE CASCADE,
			content_author_id INT REFERENCES hmn_user (id) ON DELETE SET NULL,
			like_date TIMESTAMP WITH TIME ZONE NOT NULL,
			is_counted BOOLEAN NOT NULL DEFAULT TRUE
		);
		CREATE INDEX post_like_post_id ON post_like (post_id);

		CREATE TABLE attachment (
			id UUID PRIMARY KEY,
			post_id INT NOT NULL REFERENCES post (id) ON DELETE CASCADE,
			filename VARCHAR(1000) NOT NULL,
			size INT NOT NULL,
			mime_type VARCHAR(255) NOT NULL
		);
		CREATE INDEX attachment_post_id ON attachment (post_id);

		CREATE TABLE thread_user_post (
			thread_id INT NOT NULL REFERENCES thread (id) ON DELETE CASCADE,
			user_id INT NOT NULL REFERENCES hmn_user (id) ON DELETE CASCADE,
			post_count INT NOT NULL CHECK (post_count > 0),
			PRIMARY KEY (thread_id, user_id)
		);

		CREATE TABLE moderator_log (
			id SERIAL PRIMARY KEY,
			content_type VARCHAR(50) NOT NULL,
			content_id INT NOT NULL,
			action VARCHAR(50) NOT NULL,
			actor_id INT NOT NULL,
			params JSONB NOT NULL DEFAULT '{}',
			log_date TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX moderator_log_content ON moderator_log (content_type, content_id);

		CREATE TABLE user_alert (
			id SERIAL PRIMARY KEY,
			receiver_id INT NOT NULL REFERENCES hmn_user (id) ON DELETE CASCADE,
			actor_id INT NOT NULL,
			content_type VARCHAR(50) NOT NULL,
			content_id INT NOT NULL,
			action VARCHAR(50) NOT NULL,
			extra JSONB NOT NULL DEFAULT '{}',
			alert_date TIMESTAMP WITH TIME ZONE NOT NULL
		);
		CREATE INDEX user_alert_receiver_id ON user_alert (receiver_id, alert_date);

		CREATE TABLE job_queue (
			id SERIAL PRIMARY KEY,
			job_type VARCHAR(50) NOT NULL,
			payload JSONB NOT NULL,
			queued_date TIMESTAMP WITH TIME ZONE NOT NULL
		);
		`,
	)
	return err
}

func (m InitialForumSchema) Down(ctx context.Context, tx pgx.Tx) error {
	_, err := tx.Exec(ctx,
		`
		DROP TABLE job_queue;
		DROP TABLE user_alert;
		DROP TABLE moderator_log;
		DROP TABLE thread_user_post;
		DROP TABLE attachment;
		DROP TABLE post_like;
		DROP TABLE post_version;
		ALTER TABLE forum DROP CONSTRAINT forum_last_post_id_fkey;
		ALTER TABLE thread
			DROP CONSTRAINT thread_first_id_fkey,
			DROP CONSTRAINT thread_last_id_fkey;
		DROP TABLE post;
		DROP TABLE thread;
		DROP TABLE forum;
		DROP TABLE hmn_user;
		`,
	)
	return err
}
