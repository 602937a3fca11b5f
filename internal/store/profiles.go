package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/models"
)

// execer is the subset of *sql.DB and *sql.Tx used by the write helpers.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Add validates p, inserts it and returns it with its store-assigned id.
// Any id carried by p is ignored.
func (db *DB) Add(ctx context.Context, p models.Profile) (models.Profile, error) {
	p.MealTimes = models.ParseMealTimes(p.MealTimes...)
	if err := p.Validate(); err != nil {
		return models.Profile{}, err
	}
	p.ID = 0
	id, err := insertProfile(ctx, db.conn, p)
	if err != nil {
		return models.Profile{}, err
	}
	p.ID = id
	return p, nil
}

// Update replaces the stored fields of an existing profile.
func (db *DB) Update(ctx context.Context, p models.Profile) (models.Profile, error) {
	if p.ID <= 0 {
		return models.Profile{}, fmt.Errorf("store: update profile without id: %w", apperr.ErrNotFound)
	}
	p.MealTimes = models.ParseMealTimes(p.MealTimes...)
	if err := p.Validate(); err != nil {
		return models.Profile{}, err
	}
	times, err := json.Marshal(p.MealTimes)
	if err != nil {
		return models.Profile{}, apperr.Persistence("encode meal times", err)
	}
	res, err := db.conn.ExecContext(ctx, `
		UPDATE profiles SET
			name       = ?,
			weight     = ?,
			age        = ?,
			activity   = ?,
			food_type  = ?,
			meal_times = ?,
			updated_at = ?
		WHERE id = ?
	`, p.Name, p.Weight, p.Age, string(p.Activity), string(p.FoodType), string(times), db.now(), p.ID)
	if err != nil {
		return models.Profile{}, apperr.Persistence("update profile", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Profile{}, apperr.Persistence("update profile", err)
	}
	if n == 0 {
		return models.Profile{}, fmt.Errorf("store: profile %d: %w", p.ID, apperr.ErrNotFound)
	}
	return p, nil
}

// Remove deletes a profile. Removing an unknown id is not an error.
func (db *DB) Remove(ctx context.Context, id int64) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM profiles WHERE id = ?`, id); err != nil {
		return apperr.Persistence("remove profile", err)
	}
	return nil
}

// Get returns a single profile by id.
func (db *DB) Get(ctx context.Context, id int64) (models.Profile, error) {
	row := db.conn.QueryRowContext(ctx, `
		SELECT id, name, weight, age, activity, food_type, meal_times
		FROM profiles WHERE id = ?
	`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Profile{}, fmt.Errorf("store: profile %d: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return models.Profile{}, apperr.Persistence("get profile", err)
	}
	return p, nil
}

// List returns every profile in insertion (id) order.
func (db *DB) List(ctx context.Context) ([]models.Profile, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, name, weight, age, activity, food_type, meal_times
		FROM profiles ORDER BY id
	`)
	if err != nil {
		return nil, apperr.Persistence("list profiles", err)
	}
	defer rows.Close()

	out := []models.Profile{}
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, apperr.Persistence("scan profile", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("list profiles", err)
	}
	return out, nil
}

// insertProfile writes p; a positive p.ID is kept, otherwise SQLite assigns one.
func insertProfile(ctx context.Context, ex execer, p models.Profile) (int64, error) {
	times, err := json.Marshal(p.MealTimes)
	if err != nil {
		return 0, apperr.Persistence("encode meal times", err)
	}

	var res sql.Result
	if p.ID > 0 {
		res, err = ex.ExecContext(ctx, `
			INSERT INTO profiles (id, name, weight, age, activity, food_type, meal_times)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.Name, p.Weight, p.Age, string(p.Activity), string(p.FoodType), string(times))
	} else {
		res, err = ex.ExecContext(ctx, `
			INSERT INTO profiles (name, weight, age, activity, food_type, meal_times)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.Name, p.Weight, p.Age, string(p.Activity), string(p.FoodType), string(times))
	}
	if err != nil {
		return 0, apperr.Persistence("insert profile", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Persistence("insert profile", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(s scanner) (models.Profile, error) {
	var (
		p                  models.Profile
		activity, food, mt string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Weight, &p.Age, &activity, &food, &mt); err != nil {
		return models.Profile{}, err
	}
	p.Activity = models.Activity(activity)
	p.FoodType = models.FoodType(food)
	if err := json.Unmarshal([]byte(mt), &p.MealTimes); err != nil {
		return models.Profile{}, fmt.Errorf("decode meal times of profile %d: %w", p.ID, err)
	}
	return p, nil
}
