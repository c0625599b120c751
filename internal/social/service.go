package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/farmer-in-a-tweed-cap/heimursaga-mobile/internal/db"
)

var ErrNotFound = errors.New("post not found")

type viewerKey struct{}

// WithViewer attaches the signed-in user so per-viewer flags (liked,
// bookmarked) can be resolved.
func WithViewer(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, viewerKey{}, userID)
}

func viewerFrom(ctx context.Context) string {
	id, _ := ctx.Value(viewerKey{}).(string)
	return id
}

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) GetPost(ctx context.Context, id string) (Post, error) {
	row := s.db.QueryRow(ctx, `
		SELECT p.id, p.user_id, COALESCE(u.username, ''), COALESCE(p.title, ''), p.content, COALESCE(p.place, ''),
		       ST_Y(p.location::geometry), ST_X(p.location::geometry), COALESCE(w.trip_id::text, ''),
		       COALESCE(p.likes_count, 0), COALESCE(p.bookmarks_count, 0),
		       (SELECT COUNT(*) FROM comments c WHERE c.post_id = p.id),
		       EXISTS (SELECT 1 FROM post_likes l WHERE l.post_id = p.id AND l.user_id = $2),
		       EXISTS (SELECT 1 FROM post_bookmarks b WHERE b.post_id = p.id AND b.user_id = $2),
		       p.created_at
		FROM posts p
		LEFT JOIN users u ON u.id = p.user_id
		LEFT JOIN waypoints w ON w.id = p.waypoint_id
		WHERE p.id = $1
	`, id, viewerFrom(ctx))
	var p Post
	if err := row.Scan(&p.ID, &p.UserID, &p.Author, &p.Title, &p.Content, &p.Place, &p.Lat, &p.Lon, &p.TripID,
		&p.LikesCount, &p.BookmarksCount, &p.CommentsCount, &p.Liked, &p.Bookmarked, &p.Date); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Post{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Post{}, err
	}

	photos, err := s.loadPhotos(ctx, []string{p.ID})
	if err != nil {
		return Post{}, err
	}
	p.Photos = photos[p.ID]
	return p, nil
}

// ToggleBookmark flips the user's bookmark on a post and reports the new
// state. posts.bookmarks_count moves in the same statement as the bookmark
// row, so page and detail reads see the new count.
func (s *Service) ToggleBookmark(ctx context.Context, userID, postID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		WITH removed AS (
			DELETE FROM post_bookmarks WHERE post_id=$1 AND user_id=$2 RETURNING post_id
		)
		UPDATE posts SET bookmarks_count = GREATEST(bookmarks_count - 1, 0)
		WHERE id IN (SELECT post_id FROM removed)
	`, postID, userID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = s.db.Exec(ctx, `
		WITH added AS (
			INSERT INTO post_bookmarks (post_id, user_id)
			VALUES ($1,$2)
			ON CONFLICT DO NOTHING
			RETURNING post_id
		)
		UPDATE posts SET bookmarks_count = bookmarks_count + 1
		WHERE id IN (SELECT post_id FROM added)
	`, postID, userID)
	if err != nil {
		return false, err
	}
	return true, nil
}

// ToggleFollow flips a follow edge and reports whether the follower now
// follows.
func (s *Service) ToggleFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM user_follows WHERE follower_id=$1 AND following_id=$2`, followerID, followingID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO user_follows (follower_id, following_id)
		VALUES ($1,$2)
		ON CONFLICT DO NOTHING
	`, followerID, followingID)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) loadPhotos(ctx context.Context, postIDs []string) (map[string][]PostPhoto, error) {
	if len(postIDs) == 0 {
		return map[string][]PostPhoto{}, nil
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, post_id, photo_url, created_at
		FROM post_photos WHERE post_id = ANY($1)
		ORDER BY created_at
	`, postIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	photos := map[string][]PostPhoto{}
	for rows.Next() {
		var p PostPhoto
		if err := rows.Scan(&p.ID, &p.PostID, &p.URL, &p.CreatedAt); err != nil {
			return nil, err
		}
		photos[p.PostID] = append(photos[p.PostID], p)
	}
	return photos, rows.Err()
}
