package models

// SourceMedia is an uploaded video together with the artist account that owns it.
type SourceMedia struct {
	ID          string `db:"id"`
	Title       string `db:"title"`
	ContentKind string `db:"content_kind"`
	StorageURL  string `db:"storage_url"`
	ArtistID    int64  `db:"artist_id"`
	ArtistSlug  string `db:"artist_slug"`
	OwnerUserID int64  `db:"owner_user_id"`
}
