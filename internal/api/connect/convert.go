package connect

import (
	"time"

	"github.com/samber/lo"

	playerv1 "github.com/osa030/lorelei/internal/api/playerv1"
	"github.com/osa030/lorelei/internal/app/playback"
	"github.com/osa030/lorelei/internal/domain/song"
)

func toSongInfo(s song.Song) playerv1.SongInfo {
	return playerv1.SongInfo{
		ID:       s.ID,
		Title:    s.Title,
		Artist:   s.Artist,
		AudioURL: s.AudioURL,
	}
}

func toSongInfos(songs []song.Song) []playerv1.SongInfo {
	return lo.Map(songs, func(s song.Song, _ int) playerv1.SongInfo { return toSongInfo(s) })
}

func toPlayerState(st playback.State) *playerv1.PlayerState {
	out := &playerv1.PlayerState{
		Catalog:     toSongInfos(st.Catalog),
		Queue:       toSongInfos(st.Queue),
		Mode:        st.Source.String(),
		Index:       int32(st.Index),
		CanStepBack: st.CanStepBack,
		Token:       st.Token,
		Revision:    st.Revision,
	}
	if st.NowPlaying != nil {
		out.NowPlaying = &playerv1.NowPlaying{
			Song:        toSongInfo(st.NowPlaying.Song),
			Token:       st.NowPlaying.Token,
			RequestedAt: st.NowPlaying.RequestedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return out
}
