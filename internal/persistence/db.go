// Package persistence stores full city snapshots in SQLite. Saves are
// full-replace: each Save deletes the previous snapshot and writes the
// current one inside a single transaction.
package persistence

import (
	"encoding/json"
	"strconv"

	"github.com/jmoiron/sqlx"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/talgya/city-builder/internal/building"
	"github.com/talgya/city-builder/internal/econ"
	"github.com/talgya/city-builder/internal/engine"
	"github.com/talgya/city-builder/internal/finance"
	"github.com/talgya/city-builder/internal/population"
	"github.com/talgya/city-builder/internal/research"
)

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS resources (
	name             TEXT PRIMARY KEY,
	amount           REAL NOT NULL,
	max_capacity     REAL NOT NULL,
	production_rate  REAL NOT NULL,
	consumption_rate REAL NOT NULL,
	unit_price       REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS cohorts (
	class           TEXT PRIMARY KEY,
	count           INTEGER NOT NULL,
	employment_rate REAL NOT NULL,
	satisfaction    REAL NOT NULL,
	income          REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS needs (
	name         TEXT PRIMARY KEY,
	current      REAL NOT NULL,
	demand       REAL NOT NULL,
	satisfaction REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS buildings (
	position TEXT PRIMARY KEY,
	name     TEXT NOT NULL,
	category TEXT NOT NULL,
	cost     REAL NOT NULL,
	effects  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS loans (
	id              TEXT PRIMARY KEY,
	type            TEXT NOT NULL,
	principal       REAL NOT NULL,
	interest_rate   REAL NOT NULL,
	remaining       REAL NOT NULL,
	monthly_payment REAL NOT NULL,
	turns_remaining INTEGER NOT NULL,
	taken_turn      INTEGER NOT NULL,
	rating          TEXT NOT NULL,
	repaid          INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS technologies (
	id         TEXT PRIMARY KEY,
	researched INTEGER NOT NULL,
	progress   INTEGER NOT NULL
);
`

// Store is a SQLite-backed snapshot store for one city.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the snapshot database at path.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "open snapshot db %s", path)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "set pragmas")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "create schema")
	}
	return &Store{db: db, logger: logger.Named("persistence")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a full snapshot of the city, replacing any previous one.
func (s *Store) Save(c *engine.City) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return eris.Wrap(err, "begin save")
	}
	defer tx.Rollback()

	for _, table := range []string{"meta", "resources", "cohorts", "needs", "buildings", "loans", "technologies"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return eris.Wrapf(err, "clear %s", table)
		}
	}

	if err := s.saveMeta(tx, c); err != nil {
		return err
	}
	for _, r := range c.Ledger().Resources() {
		if _, err := tx.NamedExec(`INSERT INTO resources
			(name, amount, max_capacity, production_rate, consumption_rate, unit_price)
			VALUES (:name, :amount, :max_capacity, :production_rate, :consumption_rate, :unit_price)`, r); err != nil {
			return eris.Wrapf(err, "save resource %s", r.Name)
		}
	}
	for _, cohort := range c.Population().Cohorts() {
		if _, err := tx.Exec(`INSERT INTO cohorts (class, count, employment_rate, satisfaction, income)
			VALUES (?, ?, ?, ?, ?)`,
			cohort.Class.String(), cohort.Count, cohort.EmploymentRate, cohort.Satisfaction, cohort.Income); err != nil {
			return eris.Wrapf(err, "save cohort %s", cohort.Class)
		}
	}
	for _, n := range c.Population().Needs() {
		if _, err := tx.Exec(`INSERT INTO needs (name, current, demand, satisfaction)
			VALUES (?, ?, ?, ?)`,
			n.Kind.String(), n.Current, n.Demand, n.Satisfaction); err != nil {
			return eris.Wrapf(err, "save need %s", n.Kind)
		}
	}
	for i, b := range c.Buildings() {
		effects, err := json.Marshal(b.Effects)
		if err != nil {
			return eris.Wrapf(err, "encode effects of %s", b.Name)
		}
		if _, err := tx.Exec(`INSERT INTO buildings (position, name, category, cost, effects)
			VALUES (?, ?, ?, ?, ?)`,
			strconv.Itoa(i), b.Name, b.Category.String(), b.Cost, string(effects)); err != nil {
			return eris.Wrapf(err, "save building %s", b.Name)
		}
	}
	credit := c.Credit().Snapshot()
	if err := s.saveLoans(tx, credit.Active, false); err != nil {
		return err
	}
	if err := s.saveLoans(tx, credit.History, true); err != nil {
		return err
	}
	for _, st := range c.Research().States() {
		if _, err := tx.Exec(`INSERT INTO technologies (id, researched, progress)
			VALUES (?, ?, ?)`, st.ID, boolInt(st.Researched), st.Progress); err != nil {
			return eris.Wrapf(err, "save technology %s", st.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return eris.Wrap(err, "commit save")
	}
	s.logger.Info("snapshot saved", zap.Int("turn", c.Turn()))
	return nil
}

func (s *Store) saveMeta(tx *sqlx.Tx, c *engine.City) error {
	stats, err := json.Marshal(c.Stats())
	if err != nil {
		return eris.Wrap(err, "encode stats")
	}
	credit := c.Credit().Snapshot()
	borrowed, repaid := c.Credit().Totals()
	entries := map[string]string{
		"turn":                strconv.Itoa(c.Turn()),
		"level":               strconv.Itoa(c.Level()),
		"difficulty":          c.Difficulty().Name,
		"sandbox_money":       strconv.FormatBool(c.SandboxMoney()),
		"bankruptcy_disabled": strconv.FormatBool(c.BankruptcyDisabled()),
		"stats":               string(stats),
		"credit_score":        strconv.Itoa(credit.Score),
		"successful_payments": strconv.Itoa(credit.SuccessfulPayments),
		"missed_payments":     strconv.Itoa(credit.MissedPayments),
		"total_borrowed":      strconv.FormatFloat(borrowed, 'f', -1, 64),
		"total_repaid":        strconv.FormatFloat(repaid, 'f', -1, 64),
		"current_research":    c.Research().CurrentID(),
		"research_points":     strconv.Itoa(c.Research().PointsPerTurn()),
		"research_invested":   strconv.FormatFloat(c.Research().TotalInvested(), 'f', -1, 64),
	}
	for key, value := range entries {
		if _, err := tx.Exec("INSERT INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return eris.Wrapf(err, "save meta %s", key)
		}
	}
	return nil
}

func (s *Store) saveLoans(tx *sqlx.Tx, loans []finance.Loan, repaid bool) error {
	for _, loan := range loans {
		if _, err := tx.Exec(`INSERT INTO loans
			(id, type, principal, interest_rate, remaining, monthly_payment, turns_remaining, taken_turn, rating, repaid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			loan.ID, loan.Type.String(), loan.Principal, loan.InterestRate, loan.Remaining,
			loan.MonthlyPayment, loan.TurnsRemaining, loan.TakenTurn, loan.RatingAtIssue.String(),
			boolInt(repaid)); err != nil {
			return eris.Wrapf(err, "save loan %s", loan.ID)
		}
	}
	return nil
}

// Load restores the most recent snapshot into the city. It returns
// false without touching the city when no snapshot exists.
func (s *Store) Load(c *engine.City) (bool, error) {
	meta, err := s.loadMeta()
	if err != nil {
		return false, err
	}
	if len(meta) == 0 {
		return false, nil
	}

	var resources []econ.Resource
	if err := s.db.Select(&resources, "SELECT * FROM resources"); err != nil {
		return false, eris.Wrap(err, "load resources")
	}
	for _, r := range resources {
		c.Ledger().RestoreResource(r)
	}

	rows, err := s.db.Queryx("SELECT class, count, employment_rate, satisfaction, income FROM cohorts")
	if err != nil {
		return false, eris.Wrap(err, "load cohorts")
	}
	for rows.Next() {
		var name string
		var cohort population.Cohort
		if err := rows.Scan(&name, &cohort.Count, &cohort.EmploymentRate, &cohort.Satisfaction, &cohort.Income); err != nil {
			rows.Close()
			return false, eris.Wrap(err, "scan cohort")
		}
		if class, ok := population.ClassByName(name); ok {
			cohort.Class = class
			c.Population().RestoreCohort(cohort)
		}
	}
	rows.Close()

	rows, err = s.db.Queryx("SELECT name, current, demand, satisfaction FROM needs")
	if err != nil {
		return false, eris.Wrap(err, "load needs")
	}
	for rows.Next() {
		var name string
		var need population.Need
		if err := rows.Scan(&name, &need.Current, &need.Demand, &need.Satisfaction); err != nil {
			rows.Close()
			return false, eris.Wrap(err, "scan need")
		}
		if kind, ok := population.NeedByName(name); ok {
			need.Kind = kind
			c.Population().RestoreNeed(need)
		}
	}
	rows.Close()

	buildings, err := s.loadBuildings()
	if err != nil {
		return false, err
	}
	c.RestoreBuildings(buildings)

	if err := s.loadCredit(c, meta); err != nil {
		return false, err
	}
	if err := s.loadResearch(c, meta); err != nil {
		return false, err
	}

	turn, _ := strconv.Atoi(meta["turn"])
	level, _ := strconv.Atoi(meta["level"])
	var stats engine.Stats
	if raw := meta["stats"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &stats); err != nil {
			return false, eris.Wrap(err, "decode stats")
		}
	}
	sandbox := meta["sandbox_money"] == "true"
	noBankruptcy := meta["bankruptcy_disabled"] == "true"
	c.RestoreMeta(turn, level, stats, sandbox, noBankruptcy)

	s.logger.Info("snapshot loaded", zap.Int("turn", turn))
	return true, nil
}

func (s *Store) loadMeta() (map[string]string, error) {
	rows, err := s.db.Queryx("SELECT key, value FROM meta")
	if err != nil {
		return nil, eris.Wrap(err, "load meta")
	}
	defer rows.Close()
	meta := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, eris.Wrap(err, "scan meta")
		}
		meta[key] = value
	}
	return meta, nil
}

func (s *Store) loadBuildings() ([]building.Building, error) {
	rows, err := s.db.Queryx(`SELECT name, category, cost, effects FROM buildings
		ORDER BY CAST(position AS INTEGER)`)
	if err != nil {
		return nil, eris.Wrap(err, "load buildings")
	}
	defer rows.Close()
	var out []building.Building
	for rows.Next() {
		var name, category, effects string
		var cost float64
		if err := rows.Scan(&name, &category, &cost, &effects); err != nil {
			return nil, eris.Wrap(err, "scan building")
		}
		b := building.Building{Name: name, Category: building.CategoryByName(category), Cost: cost}
		if effects != "" && effects != "null" {
			if err := json.Unmarshal([]byte(effects), &b.Effects); err != nil {
				return nil, eris.Wrapf(err, "decode effects of %s", name)
			}
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *Store) loadCredit(c *engine.City, meta map[string]string) error {
	rows, err := s.db.Queryx(`SELECT id, type, principal, interest_rate, remaining,
		monthly_payment, turns_remaining, taken_turn, rating, repaid FROM loans`)
	if err != nil {
		return eris.Wrap(err, "load loans")
	}
	defer rows.Close()

	var sn finance.Snapshot
	for rows.Next() {
		var loan finance.Loan
		var typeName, ratingName string
		var repaid int
		if err := rows.Scan(&loan.ID, &typeName, &loan.Principal, &loan.InterestRate,
			&loan.Remaining, &loan.MonthlyPayment, &loan.TurnsRemaining, &loan.TakenTurn,
			&ratingName, &repaid); err != nil {
			return eris.Wrap(err, "scan loan")
		}
		if t, ok := finance.LoanTypeByName(typeName); ok {
			loan.Type = t
		}
		loan.RatingAtIssue = ratingByName(ratingName)
		if repaid == 1 {
			sn.History = append(sn.History, loan)
		} else {
			sn.Active = append(sn.Active, loan)
		}
	}

	sn.Score, _ = strconv.Atoi(meta["credit_score"])
	sn.SuccessfulPayments, _ = strconv.Atoi(meta["successful_payments"])
	sn.MissedPayments, _ = strconv.Atoi(meta["missed_payments"])
	sn.TotalBorrowed, _ = strconv.ParseFloat(meta["total_borrowed"], 64)
	sn.TotalRepaid, _ = strconv.ParseFloat(meta["total_repaid"], 64)
	c.Credit().Restore(sn)
	return nil
}

func (s *Store) loadResearch(c *engine.City, meta map[string]string) error {
	var states []research.TechState
	if err := s.db.Select(&states, "SELECT id, researched, progress FROM technologies"); err != nil {
		return eris.Wrap(err, "load technologies")
	}
	for _, st := range states {
		c.Research().RestoreState(st)
	}
	points, _ := strconv.Atoi(meta["research_points"])
	invested, _ := strconv.ParseFloat(meta["research_invested"], 64)
	c.Research().RestoreSlot(meta["current_research"], points, invested)
	return nil
}

func ratingByName(name string) finance.Rating {
	for r := finance.RatingExcellent; r <= finance.RatingBad; r++ {
		if r.String() == name {
			return r
		}
	}
	return finance.RatingFair
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
