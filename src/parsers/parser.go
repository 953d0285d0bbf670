package parsers

import (
	"io"

	"github.com/username/cgtfolio/src/models"
)

type Parser interface {
	Parse(file io.Reader) ([]models.CanonicalTransaction, error)
}
