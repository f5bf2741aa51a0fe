package catalog

import (
	"time"

	"github.com/zmb3/spotify/v2"

	"pitchlist/internal/model"
)

// Conversions from the SDK's wire types, reduced to the fields in use.

func playlistToModel(p spotify.SimplePlaylist) model.Playlist {
	return model.Playlist{
		ID:     p.ID.String(),
		Name:   p.Name,
		Owner:  p.Owner.ID,
		Public: p.IsPublic,
	}
}

func albumToModel(a spotify.SimpleAlbum) model.CatalogMatch {
	m := model.CatalogMatch{ID: a.ID.String(), Name: a.Name, URI: string(a.URI)}
	for _, ar := range a.Artists {
		m.Artists = append(m.Artists, ar.Name)
	}
	return m
}

func itemToModel(it spotify.PlaylistItem) model.PlaylistTrack {
	pt := model.PlaylistTrack{}
	if t, err := time.Parse(time.RFC3339, it.AddedAt); err == nil {
		pt.AddedAt = t
	}
	if tr := it.Track.Track; tr != nil {
		pt.TrackID = tr.ID.String()
		pt.URI = string(tr.URI)
		pt.AlbumID = tr.Album.ID.String()
	}
	return pt
}
