package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/krm/mini-commerce/internal/database"
	"github.com/krm/mini-commerce/internal/models"
)

const categoryColumns = `id, name, description, image_url, active, created_at, updated_at`

func scanCategory(row interface{ Scan(...interface{}) error }, c *models.Category) error {
	return row.Scan(
		&c.ID,
		&c.Name,
		&c.Description,
		&c.ImageURL,
		&c.Active,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func CreateCategory(ctx context.Context, db *sql.DB, name, description, imageURL string, active bool) (*models.Category, error) {
	category := &models.Category{}

	query := `
		INSERT INTO categories (name, description, image_url, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
		RETURNING ` + categoryColumns

	err := scanCategory(db.QueryRowContext(ctx, query, name, description, imageURL, active), category)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, database.ErrCategoryNameTaken
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return category, nil
}

func GetCategory(ctx context.Context, db *sql.DB, id int64) (*models.Category, error) {
	category := &models.Category{}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

	err := scanCategory(db.QueryRowContext(ctx, query, id), category)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return category, nil
}

func ListCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	return listCategories(ctx, db, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
}

func ListActiveCategories(ctx context.Context, db *sql.DB) ([]models.Category, error) {
	return listCategories(ctx, db, `SELECT `+categoryColumns+` FROM categories WHERE active ORDER BY name`)
}

func listCategories(ctx context.Context, db *sql.DB, query string) ([]models.Category, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []models.Category
	for rows.Next() {
		var category models.Category
		if err := scanCategory(rows, &category); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, category)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return categories, nil
}

// UpdateCategory overwrites every mutable field with the caller's values.
func UpdateCategory(ctx context.Context, db *sql.DB, id int64, name, description, imageURL string, active bool) (*models.Category, error) {
	category := &models.Category{}

	query := `
		UPDATE categories
		SET name = $1, description = $2, image_url = $3, active = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + categoryColumns

	err := scanCategory(db.QueryRowContext(ctx, query, name, description, imageURL, active, id), category)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, database.ErrCategoryNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return nil, database.ErrCategoryNameTaken
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return category, nil
}

// DeleteCategory rejects the delete while any product still references the
// category.
func DeleteCategory(ctx context.Context, db *sql.DB, id int64) error {
	result, err := db.ExecContext(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return database.ErrCategoryInUse
		}
		return fmt.Errorf("delete category: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return database.ErrCategoryNotFound
	}

	return nil
}
