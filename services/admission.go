package services

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AccessionLedger ist das append-only Ledger bereits eingespeister
// Accession-Codes.
type AccessionLedger interface {
	// FilterSurveyed meldet, welche der übergebenen Codes schon im
	// Ledger stehen.
	FilterSurveyed(codes []string) (map[string]bool, error)
	// AppendSurveyed hängt alle Codes in einem Schreibvorgang an.
	AppendSurveyed(codes []string, createdAt time.Time) error
}

// SurveyJobCounter liefert die Anzahl der Survey-Jobs, die gestartet,
// noch nicht beendet und nach dem Cutoff erzeugt worden sind.
type SurveyJobCounter interface {
	CountActive(cutoff time.Time) (int64, error)
}

// SurveyEnqueuer reiht einen Survey-Job für einen Code ein. Die
// Operation muss denselben Code gefahrlos doppelt entgegennehmen können,
// weil Abbrüche vor dem Ledger-Write zu erneuten Versuchen führen.
type SurveyEnqueuer interface {
	Enqueue(code string) error
}

// AdmissionController spielt einen großen Backlog bekannter Accessions
// in das Survey-System ein, ohne Dritt-APIs oder das lokale Job-System
// zu überlasten. Der Concurrency-Check ist bewusst nur advisory: er
// dosiert den Einspeisedruck, eine harte Obergrenze muss das externe
// Job-System selbst durchsetzen.
type AdmissionController struct {
	Ledger AccessionLedger
	Jobs   SurveyJobCounter
	Queue  SurveyEnqueuer
	Logger *zap.Logger

	BatchSize      int
	ConcurrencyCap int64
	PacingDelay    time.Duration
	// Jobs, die vor Cutoff erzeugt wurden, zählen nicht als "in flight".
	Cutoff time.Time

	// Sleep und Now sind für Tests injizierbar; nil fällt auf die
	// Standard-Uhr zurück.
	Sleep func(time.Duration)
	Now   func() time.Time
}

// Run arbeitet den Backlog in Batches ab und gibt die Anzahl der
// eingespeisten Codes zurück. Pro Batch werden bereits vermessene Codes
// übersprungen, der Rest wird unter Concurrency-Cap und fester Taktung
// eingespeist und am Batch-Ende gesammelt ins Ledger geschrieben. Ein
// fehlgeschlagener Enqueue bricht weder Batch noch Lauf ab; der Code
// wird beim nächsten Lauf erneut versucht, weil er nicht im Ledger steht.
func (c *AdmissionController) Run(backlog []string) (int, error) {
	sleep := c.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}
	if c.BatchSize <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}

	totalFed := 0

	for start := 0; start < len(backlog); start += c.BatchSize {
		end := start + c.BatchSize
		if end > len(backlog) {
			end = len(backlog)
		}
		batch := backlog[start:end]

		c.Logger.Info("Starte nächsten Accession-Batch",
			zap.Int("batch_size", len(batch)),
			zap.String("first_code", batch[0]))

		surveyed, err := c.Ledger.FilterSurveyed(batch)
		if err != nil {
			return totalFed, fmt.Errorf("ledger lookup: %w", err)
		}

		missing := make(map[string]bool, len(batch))
		for _, code := range batch {
			if !surveyed[code] {
				missing[code] = true
			}
		}

		var fed []string
		for len(missing) > 0 {
			active, err := c.Jobs.CountActive(c.Cutoff)
			if err != nil {
				// Zähler nicht lesbar: konservativ wie "am Cap" behandeln.
				c.Logger.Warn("Survey-Job-Zähler nicht lesbar", zap.Error(err))
				sleep(c.PacingDelay)
				continue
			}

			if active >= c.ConcurrencyCap {
				sleep(c.PacingDelay)
				continue
			}

			code := popAny(missing)
			if err := c.Queue.Enqueue(code); err != nil {
				// Gotta keep feeding the beast: ein einzelner Fehler
				// stoppt den Lauf nicht.
				c.Logger.Error("Enqueue fehlgeschlagen",
					zap.String("accession_code", code), zap.Error(err))
				continue
			}
			fed = append(fed, code)
			sleep(c.PacingDelay)
		}

		if len(fed) > 0 {
			if err := c.Ledger.AppendSurveyed(fed, now()); err != nil {
				return totalFed, fmt.Errorf("ledger append: %w", err)
			}
			totalFed += len(fed)
		}
	}
	return totalFed, nil
}

// popAny entfernt ein beliebiges Element aus der Menge.
func popAny(set map[string]bool) string {
	for code := range set {
		delete(set, code)
		return code
	}
	return ""
}
