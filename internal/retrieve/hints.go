package retrieve

import (
	"strings"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/internal/index"
	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

// HintKind discriminates the variants of [Hint].
type HintKind int

const (
	// HintNone means the query carried no usable genre or mood signal.
	HintNone HintKind = iota

	// HintGenre means one or more genre keywords were found in the query.
	HintGenre

	// HintMood means a mood keyword was found and mapped to a genre set.
	HintMood
)

// Mood is a coarse reader mood detected from the query text.
type Mood string

const (
	MoodHappy     Mood = "happy"
	MoodSad       Mood = "sad"
	MoodStressed  Mood = "stressed"
	MoodEnergetic Mood = "energetic"
)

// Hint is the tagged result of heuristic query analysis. Exactly one variant is
// populated according to Kind: Genres for HintGenre, Mood for HintMood, neither
// for HintNone.
type Hint struct {
	Kind   HintKind
	Genres []books.Genre
	Mood   Mood
}

// Filter converts the hint into a metadata filter for the vector index.
// Mood hints resolve to the genre set readers in that mood tend to ask for.
func (h Hint) Filter() index.Filter {
	switch h.Kind {
	case HintGenre:
		return index.Filter{Genres: h.Genres}
	case HintMood:
		return index.Filter{Genres: moodGenres[h.Mood]}
	default:
		return index.Filter{}
	}
}

// Hinter extracts a retrieval hint from a free-text query. Implementations must
// be deterministic: the same query always yields the same hint.
type Hinter interface {
	Extract(query string) Hint
}

// genrePattern pairs a genre with the Turkish and English keywords that signal
// it. Order matters: multi-word patterns ("bilim kurgu", "science fiction")
// must be consumed before their substrings can match a broader genre.
type genrePattern struct {
	genre    books.Genre
	keywords []string
}

var genrePatterns = []genrePattern{
	{books.GenreScienceFiction, []string{"bilim kurgu", "science fiction", "sci-fi", "uzay", "space", "gelecek", "future"}},
	{books.GenreHistoricalFiction, []string{"tarihi roman", "historical fiction"}},
	{books.GenreChildrens, []string{"çocuk edebiyatı", "çocuk", "child", "masal", "fairy tale"}},
	{books.GenreYoungAdult, []string{"young adult", "gençlik", "teen"}},
	{books.GenreSelfHelp, []string{"kişisel gelişim", "self-help", "self help"}},
	{books.GenreFantasy, []string{"fantastik", "fantasy", "büyü", "magic", "sihir", "ejderha", "dragon"}},
	{books.GenreMystery, []string{"polisiye", "detective", "dedektif", "cinayet", "murder", "gizem", "mystery"}},
	{books.GenreThriller, []string{"gerilim", "thriller", "suspense"}},
	{books.GenreRomance, []string{"aşk", "romantik", "romantic", "romance", "love"}},
	{books.GenrePhilosophy, []string{"felsefe", "philosophy"}},
	{books.GenrePsychology, []string{"psikoloji", "psychology"}},
	{books.GenreTechnology, []string{"teknoloji", "technology", "yapay zeka", "artificial intelligence"}},
	{books.GenreHistory, []string{"tarih", "history", "savaş", "war"}},
	{books.GenrePoetry, []string{"şiir", "poetry", "poem"}},
	{books.GenreDrama, []string{"drama", "dramatic", "tragedy"}},
	{books.GenreCooking, []string{"yemek", "cookbook", "cooking"}},
	{books.GenreTravel, []string{"seyahat", "travel", "gezi"}},
	{books.GenreSports, []string{"spor", "sport", "futbol", "football"}},
	{books.GenreMusic, []string{"müzik", "music"}},
	{books.GenreArt, []string{"sanat", "painting", "resim"}},
	{books.GenreBiography, []string{"biyografi", "biography"}},
	{books.GenreNovel, []string{"roman", "novel"}},
	{books.GenreScience, []string{"bilim", "science"}},
}

var moodPatterns = []struct {
	mood     Mood
	keywords []string
}{
	{MoodHappy, []string{"mutlu", "happy", "neşeli", "cheerful", "keyifli", "joyful"}},
	{MoodSad, []string{"üzgün", "sad", "mutsuz", "unhappy", "kederli", "hüzünlü", "melancholic"}},
	{MoodStressed, []string{"stresli", "stressed", "gergin", "tense", "endişeli", "anxious"}},
	{MoodEnergetic, []string{"enerjik", "energetic", "canlı", "lively", "dinç"}},
}

// moodGenres maps a mood to the genres recommended for it.
var moodGenres = map[Mood][]books.Genre{
	MoodHappy:     {books.GenreRomance, books.GenreChildrens, books.GenreTravel},
	MoodSad:       {books.GenreDrama, books.GenreNovel, books.GenrePoetry},
	MoodStressed:  {books.GenreSelfHelp, books.GenrePsychology, books.GenreTravel},
	MoodEnergetic: {books.GenreThriller, books.GenreSports, books.GenreScienceFiction},
}

// KeywordHinter detects genre and mood signals by bilingual (Turkish/English)
// keyword matching. Genre hints win over mood hints: an explicit topic is a
// stronger signal than a vibe.
type KeywordHinter struct{}

var _ Hinter = KeywordHinter{}

// Extract implements [Hinter].
func (KeywordHinter) Extract(query string) Hint {
	text := strings.ToLower(query)

	var genres []books.Genre
	for _, p := range genrePatterns {
		for _, kw := range p.keywords {
			if idx := strings.Index(text, kw); idx >= 0 {
				genres = append(genres, p.genre)
				// Consume the matched span so "bilim kurgu" cannot also
				// trigger the standalone "bilim" (science) pattern.
				text = text[:idx] + text[idx+len(kw):]
				break
			}
		}
	}
	if len(genres) > 0 {
		return Hint{Kind: HintGenre, Genres: genres}
	}

	for _, p := range moodPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(text, kw) {
				return Hint{Kind: HintMood, Mood: p.mood}
			}
		}
	}
	return Hint{Kind: HintNone}
}
