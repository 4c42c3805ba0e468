package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KaracaDeer/Luminis-AI-Library-Chatbot/pkg/books"
)

// SeedCatalog returns the built-in starter catalog used when no external sync
// has populated the corpus yet. The mix of Turkish and English titles mirrors
// the bilingual library the assistant serves.
func SeedCatalog() []books.Record {
	return []books.Record{
		{ID: "dune", Title: "Dune", Author: "Frank Herbert", Genre: books.GenreScienceFiction,
			Description: "A young noble survives betrayal on the desert planet Arrakis and rises among its native Fremen.",
			Rating:      4.6, Year: 1965, Language: books.LanguageEnglish},
		{ID: "foundation", Title: "Foundation", Author: "Isaac Asimov", Genre: books.GenreScienceFiction,
			Description: "A mathematician foresees the fall of a galactic empire and plants a colony to shorten the dark age.",
			Rating:      4.7, Year: 1951, Language: books.LanguageEnglish},
		{ID: "1984", Title: "1984", Author: "George Orwell", Genre: books.GenreNovel,
			Description: "A clerk in a total surveillance state commits the crime of independent thought.",
			Rating:      4.5, Year: 1949, Language: books.LanguageEnglish},
		{ID: "brave-new-world", Title: "Brave New World", Author: "Aldous Huxley", Genre: books.GenreScienceFiction,
			Description: "An engineered society trades freedom for comfort until an outsider refuses the bargain.",
			Rating:      4.2, Year: 1932, Language: books.LanguageEnglish},
		{ID: "the-hobbit", Title: "The Hobbit", Author: "J.R.R. Tolkien", Genre: books.GenreFantasy,
			Description: "A homebody hobbit is swept into a dwarven quest to reclaim a dragon's mountain.",
			Rating:      4.5, Year: 1937, Language: books.LanguageEnglish},
		{ID: "orient-express", Title: "Murder on the Orient Express", Author: "Agatha Christie", Genre: books.GenreMystery,
			Description: "Hercule Poirot untangles a murder on a snowbound train where every passenger has a motive.",
			Rating:      4.3, Year: 1934, Language: books.LanguageEnglish},
		{ID: "pride-and-prejudice", Title: "Pride and Prejudice", Author: "Jane Austen", Genre: books.GenreRomance,
			Description: "Elizabeth Bennet and Mr. Darcy talk, misjudge and fall for each other in Regency England.",
			Rating:      4.4, Year: 1813, Language: books.LanguageEnglish},
		{ID: "sapiens", Title: "Sapiens", Author: "Yuval Noah Harari", Genre: books.GenreHistory,
			Description: "A brief history of humankind from foraging bands to global empires and data religions.",
			Rating:      4.4, Year: 2011, Language: books.LanguageEnglish},
		{ID: "kurk-mantolu-madonna", Title: "Kürk Mantolu Madonna", Author: "Sabahattin Ali", Genre: books.GenreNovel,
			Description: "Silik bir memurun Berlin'de tanıştığı ressam Maria Puder'e duyduğu sessiz ve derin aşkın hikayesi.",
			Rating:      4.5, Year: 1943, Language: books.LanguageTurkish},
		{ID: "tutunamayanlar", Title: "Tutunamayanlar", Author: "Oğuz Atay", Genre: books.GenreNovel,
			Description: "Selim Işık'ın intiharının ardından arkadaşı Turgut'un onun hayatını ve kendi hayatını sorgulaması.",
			Rating:      4.6, Year: 1972, Language: books.LanguageTurkish},
		{ID: "ince-memed", Title: "İnce Memed", Author: "Yaşar Kemal", Genre: books.GenreHistoricalFiction,
			Description: "Toroslar'da ağa zulmüne başkaldırıp eşkıya olan Memed'in destansı hikayesi.",
			Rating:      4.4, Year: 1955, Language: books.LanguageTurkish},
		{ID: "simyaci", Title: "Simyacı", Author: "Paulo Coelho", Genre: books.GenrePhilosophy,
			Description: "Endülüslü çoban Santiago'nun kişisel menkıbesinin peşinde Mısır piramitlerine uzanan yolculuğu.",
			Rating:      4.1, Year: 1988, Language: books.LanguageTurkish},
	}
}

// Bootstrap seeds an empty corpus with the starter catalog. A corpus that
// already holds records is left untouched so a restart never clobbers synced
// data.
func (s *Syncer) Bootstrap(ctx context.Context) error {
	n, err := s.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("ingest: count corpus: %w", err)
	}
	if n > 0 {
		s.log.Debug("corpus already populated, skipping seed", slog.Int("records", n))
		return nil
	}
	return s.Upsert(ctx, SeedCatalog())
}
