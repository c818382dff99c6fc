// Package pipeline runs one extraction: source API to validated records to
// warehouse tables, sequentially, with no concurrency between stages.
package pipeline

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nmorelli/spotify-etl/internal/record"
	"github.com/nmorelli/spotify-etl/internal/transform"
)

// Extractor produces the raw record set for one run.
type Extractor interface {
	ExtractAll(ctx context.Context) (record.Set, error)
}

// Loader writes a validated record set to the warehouse.
type Loader interface {
	LoadAll(ctx context.Context, set record.Set) error
}

// Summary counts the validated records loaded per entity kind.
type Summary struct {
	Users          int
	Playlists      int
	Tracks         int
	AudioFeatures  int
	Artists        int
	PlaylistTracks int
	RecentlyPlayed int
	TopTracks      int
	TopArtists     int
}

// Rows renders the summary for table output, in load order.
func (s Summary) Rows() [][]string {
	row := func(kind string, n int) []string {
		return []string{kind, strconv.Itoa(n)}
	}
	return [][]string{
		row("users", s.Users),
		row("playlists", s.Playlists),
		row("tracks", s.Tracks),
		row("audio features", s.AudioFeatures),
		row("artists", s.Artists),
		row("playlist tracks", s.PlaylistTracks),
		row("recently played", s.RecentlyPlayed),
		row("top tracks", s.TopTracks),
		row("top artists", s.TopArtists),
	}
}

type Pipeline struct {
	extractor Extractor
	loader    Loader
	log       zerolog.Logger
}

func New(extractor Extractor, loader Loader, log zerolog.Logger) *Pipeline {
	return &Pipeline{extractor: extractor, loader: loader, log: log}
}

// Run executes extract, transform, and load once, in that order, and returns
// the per-kind record counts. Any error aborts the run; a load error can
// leave earlier tables updated and later ones not.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	runID := uuid.New().String()[:8]
	log := p.log.With().Str("run", runID).Logger()

	log.Info().Msg("pipeline starting")

	raw, err := p.extractor.ExtractAll(ctx)
	if err != nil {
		return Summary{}, err
	}

	validated := transform.All(raw, log)
	summary := Summary{
		Users:          len(validated.Users),
		Playlists:      len(validated.Playlists),
		Tracks:         len(validated.Tracks),
		AudioFeatures:  len(validated.AudioFeatures),
		Artists:        len(validated.Artists),
		PlaylistTracks: len(validated.PlaylistTracks),
		RecentlyPlayed: len(validated.RecentlyPlayed),
		TopTracks:      len(validated.TopTracks),
		TopArtists:     len(validated.TopArtists),
	}

	if err := p.loader.LoadAll(ctx, validated); err != nil {
		return Summary{}, err
	}

	log.Info().
		Int("tracks", summary.Tracks).
		Int("artists", summary.Artists).
		Int("plays", summary.RecentlyPlayed).
		Msg("pipeline complete")
	return summary, nil
}
