// Package sqlstore implements the rest storage contract on postgres. Every
// resource class becomes one table with a uuid primary key and one varchar
// column per declared attribute; to-one relationships are uuid columns on
// the parent table, to-many relationships are join tables. Each session is
// one database transaction.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/tomaswangen/safrs/core/logger"
	"github.com/tomaswangen/safrs/core/rest"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

// Open opens a postgres database with a schema. The schema gets created if
// it does not exist yet. The returned database also has the uuid-ossp
// extension loaded.
func Open(dataSourceName, schema string) *DB {
	nillog := logger.FromContext(nil)
	nillog.Infoln("connecting to postgres database")
	db, err := sql.Open("postgres", dataSourceName)
	if err != nil {
		panic(err)
	}
	if err := db.Ping(); err != nil {
		panic(err)
	}
	if len(schema) == 0 {
		schema = "public"
	} else {
		nillog.Infoln("selected database schema:", schema)
		_, err = db.Exec(`CREATE extension IF NOT EXISTS "uuid-ossp";
CREATE schema IF NOT EXISTS ` + schema + `;
`)
		if err != nil {
			panic(err)
		}
	}
	return &DB{DB: db, Schema: schema}
}

// ClearSchema clears all the data contained in the database's schema by
// dropping and recreating it.
func (db *DB) ClearSchema() {
	if db.Schema == "public" {
		panic("refuse to drop public schema")
	}
	_, err := db.Exec(`DROP SCHEMA ` + db.Schema + ` CASCADE;
CREATE schema IF NOT EXISTS ` + db.Schema + `;`)
	if err != nil {
		logger.FromContext(nil).WithError(err).Errorln("clear schema:", db.Schema)
	}
}

// Store is a postgres rest.Store.
type Store struct {
	db       *DB
	registry *rest.Registry
}

// Builder is a builder helper for the Store
type Builder struct {
	// DB is a postgres database. This is mandatory.
	DB *DB
	// Registry is the resource-class registry. This is mandatory.
	Registry *rest.Registry
	// UpdateSchema creates the tables for the registered classes.
	UpdateSchema bool
}

// MustNew realizes the store. With UpdateSchema it creates the sql relations
// if they do not exist; it panics on invalid configuration.
func MustNew(bb *Builder) *Store {
	if bb.DB == nil {
		panic("DB is missing")
	}
	if bb.Registry == nil {
		panic("Registry is missing")
	}
	s := &Store{db: bb.DB, registry: bb.Registry}
	if bb.UpdateSchema {
		s.updateSchema()
	}
	return s
}

func (s *Store) table(class string) string {
	return s.db.Schema + "." + pq.QuoteIdentifier(class)
}

func (s *Store) joinTable(class *rest.Class, rel *rest.Relationship) string {
	return s.db.Schema + "." + pq.QuoteIdentifier(class.Name+"_"+rel.Key)
}

// joinColumns returns the parent and child id column names of a join table,
// disambiguated when a relationship relates a class to itself.
func joinColumns(class *rest.Class, rel *rest.Relationship) (string, string) {
	parent := class.Name + "_id"
	child := rel.Child.Name + "_id"
	if parent == child {
		child += "2"
	}
	return parent, child
}

// refColumn is the uuid column a to-one relationship is stored in.
func refColumn(rel *rest.Relationship) string {
	return rel.Key + "_ref"
}

func (s *Store) updateSchema() {
	nillog := logger.FromContext(nil)

	// class tables first, relation columns and join tables second, so that
	// foreign keys can reference their peers
	for _, class := range s.registry.Classes() {
		nillog.Debugln("create class table:", class.Name)
		createQuery := fmt.Sprintf(
			"CREATE table IF NOT EXISTS %s (%s uuid NOT NULL DEFAULT uuid_generate_v4() PRIMARY KEY, "+
				"timestamp timestamp NOT NULL DEFAULT now());",
			s.table(class.Name), pq.QuoteIdentifier(class.IDParam()))
		for _, attribute := range class.Attributes() {
			createQuery += fmt.Sprintf(
				"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s varchar NOT NULL DEFAULT '';",
				s.table(class.Name), pq.QuoteIdentifier(attribute))
			createQuery += fmt.Sprintf(
				"CREATE index IF NOT EXISTS %s ON %s(%s);",
				pq.QuoteIdentifier("searchable_"+class.Name+"_"+attribute),
				s.table(class.Name), pq.QuoteIdentifier(attribute))
		}
		if _, err := s.db.Exec(createQuery); err != nil {
			nillog.WithError(err).Errorf("error while updating schema when running: %s", createQuery)
			panic("invalid configuration")
		}
	}

	for _, class := range s.registry.Classes() {
		for _, rel := range class.Relationships() {
			if rel.Direction.ToOne() {
				query := fmt.Sprintf(
					"ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s uuid "+
						"REFERENCES %s ON DELETE SET NULL;",
					s.table(class.Name), pq.QuoteIdentifier(refColumn(rel)),
					s.table(rel.Child.Name))
				if _, err := s.db.Exec(query); err != nil {
					nillog.WithError(err).Errorf("error while updating schema when running: %s", query)
					panic("invalid configuration")
				}
				continue
			}
			parentColumn, childColumn := joinColumns(class, rel)
			createColumns := []string{
				"serial SERIAL",
				fmt.Sprintf("%s uuid NOT NULL REFERENCES %s ON DELETE CASCADE",
					pq.QuoteIdentifier(parentColumn), s.table(class.Name)),
				fmt.Sprintf("%s uuid NOT NULL REFERENCES %s ON DELETE CASCADE",
					pq.QuoteIdentifier(childColumn), s.table(rel.Child.Name)),
				fmt.Sprintf("UNIQUE (%s, %s)",
					pq.QuoteIdentifier(parentColumn), pq.QuoteIdentifier(childColumn)),
			}
			query := fmt.Sprintf("CREATE table IF NOT EXISTS %s (%s);",
				s.joinTable(class, rel), strings.Join(createColumns, ", "))
			if _, err := s.db.Exec(query); err != nil {
				nillog.WithError(err).Errorf("error while updating schema when running: %s", query)
				panic("invalid configuration")
			}
		}
	}
}

// Session opens a database transaction.
func (s *Store) Session(ctx context.Context) (rest.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &session{store: s, tx: tx}, nil
}

// constraintError maps postgres integrity violations (error class 23) onto
// the pipeline's constraint error kind.
func constraintError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if strings.HasPrefix(string(pqErr.Code), "23") {
			return &rest.ConstraintError{Err: pqErr}
		}
	}
	return err
}

// validationError maps postgres errors the query engine treats as request
// faults (undefined column, invalid text representation) onto validation
// errors.
func validationError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		switch pqErr.Code {
		case "42703", "22P02":
			return rest.ValidationError("%s", pqErr.Message)
		}
	}
	return err
}
