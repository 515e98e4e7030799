package verify

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/docextract/internal/model"
	"github.com/sells-group/docextract/internal/schema"
)

func lineTok(page int, top float64, text string) model.OcrToken {
	return model.OcrToken{Text: text, Page: page, Top: top, BlockType: model.BlockTypeLine}
}

func wordTok(page int, top float64, text string) model.OcrToken {
	return model.OcrToken{Text: text, Page: page, Top: top, BlockType: model.BlockTypeWord}
}

func patentTokens() []model.OcrToken {
	return []model.OcrToken{
		lineTok(1, 0.40, "Inscrita en el Registro Mercantil bajo el número 12345"),
		lineTok(1, 0.10, "REGISTRO MERCANTIL GENERAL DE LA REPÚBLICA"),
		lineTok(1, 0.45, "folio 218 del libro 77 de Empresas Mercantiles"),
		lineTok(2, 0.05, "Nombre comercial: Librería El Quetzal"),
		lineTok(2, 0.20, "Propietario: María José Peña Núñez"),
		wordTok(2, 0.20, "Propietario:"),
	}
}

func TestVerifyField_NumericExactMatch(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	res, err := v.VerifyField("numero_registro", "12345", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationConfirmed, res.Status)
	assert.Equal(t, 1.0, res.Score)
	assert.Equal(t, 1, res.Page)
	assert.Contains(t, res.Matched, "12345")
}

func TestVerifyField_NumericIgnoresFormatting(t *testing.T) {
	v := New([]model.OcrToken{lineTok(1, 0.1, "Registro No. 12,345")}, DefaultThresholds())

	res, err := v.VerifyField("numero_registro", "No. 12345", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationConfirmed, res.Status)
}

func TestVerifyField_NumericInsideSeparatedNumber(t *testing.T) {
	tests := []struct {
		line  string
		value string
	}{
		{"INSCRITA BAJO EL NÚMERO 12345-2019 DEL LIBRO 7", "12345"},
		{"Registro 12345/2019", "12345"},
		{"Registro 12345/2019", "2019"},
		{"ESCRITURA NÚMERO 12345-2019", "12345-2019"},
	}
	for _, tt := range tests {
		t.Run(tt.line+" "+tt.value, func(t *testing.T) {
			v := New([]model.OcrToken{lineTok(1, 0.1, tt.line)}, DefaultThresholds())

			res, err := v.VerifyField("numero_registro", tt.value, schema.ValueNumeric)
			require.NoError(t, err)
			assert.Equal(t, model.VerificationConfirmed, res.Status)
			assert.Equal(t, tt.line, res.Matched)
		})
	}
}

func TestVerifyField_NumericOneDigitOff(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	res, err := v.VerifyField("numero_registro", "12346", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationSuspicious, res.Status)
	assert.InDelta(t, 0.8, res.Score, 1e-9)
}

func TestVerifyField_NumericOCRLetterConfusion(t *testing.T) {
	// "1234S" carries only four digits; the OCR run 12345 is one edit away.
	v := New(patentTokens(), DefaultThresholds())

	res, err := v.VerifyField("numero_registro", "1234S", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationSuspicious, res.Status)
}

func TestVerifyField_NumericNotFound(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	res, err := v.VerifyField("numero_registro", "98765", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationNotFound, res.Status)

	res, err = v.VerifyField("numero_registro", "sin número", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationNotFound, res.Status)
}

func TestVerifyField_NumericSkipsIncomparableLengths(t *testing.T) {
	v := New([]model.OcrToken{lineTok(1, 0.1, "expediente 1234567")}, DefaultThresholds())

	res, err := v.VerifyField("folio", "12345", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationNotFound, res.Status)
}

func TestVerifyField_TextConfirmedWithinLine(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	res, err := v.VerifyField("nombre_comercial", "librería el quetzal", schema.ValueText)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationConfirmed, res.Status)
	assert.Equal(t, 2, res.Page)
}

func TestVerifyField_TextDiacriticMismatchIsNotExact(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	res, err := v.VerifyField("propietario", "Maria Jose Pena Nunez", schema.ValueText)
	require.NoError(t, err)
	// Five dropped diacritics over 21 runes: still close, but not identical.
	assert.Less(t, res.Score, 1.0)
	assert.Equal(t, model.VerificationSuspicious, res.Status)
}

func TestVerifyField_TextNotFound(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	res, err := v.VerifyField("nombre_comercial", "Ferretería San Cristóbal", schema.ValueText)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationNotFound, res.Status)
}

func TestVerifyField_TextWholeWordOnly(t *testing.T) {
	v := New([]model.OcrToken{lineTok(1, 0.1, "JUANA")}, DefaultThresholds())

	res, err := v.VerifyField("nombres", "JUAN", schema.ValueText)
	require.NoError(t, err)
	assert.NotEqual(t, 1.0, res.Score)
}

func TestVerifyField_WordBlocksOnly(t *testing.T) {
	tokens := []model.OcrToken{
		wordTok(1, 0.50, "CUI:"),
		wordTok(1, 0.50, "2456"),
		wordTok(1, 0.50, "78901"),
		wordTok(1, 0.50, "0101"),
		wordTok(1, 0.20, "GARCÍA"),
		wordTok(1, 0.20, "LÓPEZ"),
	}
	v := New(tokens, DefaultThresholds())

	res, err := v.VerifyField("apellidos", "García López", schema.ValueText)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationConfirmed, res.Status)

	res, err = v.VerifyField("cui", "2456 78901 0101", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationConfirmed, res.Status)
}

func TestVerifyField_EmptyValue(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	_, err := v.VerifyField("folio", "ILLEGIBLE", schema.ValueNumeric)
	require.ErrorIs(t, err, ErrEmptyValue)
}

func TestVerifyField_UnsupportedType(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	_, err := v.VerifyField("folio", "218", schema.ValueType("DATE"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported value type")
}

func TestVerifyField_MalformedTokens(t *testing.T) {
	tests := []struct {
		name  string
		token model.OcrToken
	}{
		{"negative page", model.OcrToken{Text: "x", Page: -1, BlockType: model.BlockTypeLine}},
		{"nan position", model.OcrToken{Text: "x", Top: math.NaN(), BlockType: model.BlockTypeLine}},
		{"unknown block", model.OcrToken{Text: "x", BlockType: "TABLE"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New([]model.OcrToken{tt.token}, DefaultThresholds())
			_, err := v.VerifyField("folio", "218", schema.ValueNumeric)
			require.ErrorIs(t, err, ErrMalformedTokens)

			// The failure is sticky for the verifier's lifetime.
			_, err = v.VerifyField("libro", "77", schema.ValueNumeric)
			require.ErrorIs(t, err, ErrMalformedTokens)
		})
	}
}

func TestVerifier_IndexBuiltOnce(t *testing.T) {
	v := New(patentTokens(), DefaultThresholds())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = v.VerifyField("folio", "218", schema.ValueNumeric)
		}()
	}
	wg.Wait()

	first := v.idx
	_, err := v.VerifyField("libro", "77", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Same(t, first, v.idx)
}

func TestSpacedRuns(t *testing.T) {
	assert.Equal(t, []string{"245678901", "2456789010101", "789010101"}, spacedRuns("CUI: 2456 78901 0101"))
	assert.Nil(t, spacedRuns("folio 218 del libro 77"))
	assert.Equal(t, []string{"1234"}, spacedRuns("12, 34 abc"))
}

func TestBuildIndex_OrdersByPageThenTop(t *testing.T) {
	idx, err := buildIndex(patentTokens())
	require.NoError(t, err)
	require.Len(t, idx.lines, 5)
	assert.Equal(t, "REGISTRO MERCANTIL GENERAL DE LA REPÚBLICA", idx.lines[0].norm)
	assert.Equal(t, 2, idx.lines[4].page)
}

func TestVerifyField_DoesNotMutateTokens(t *testing.T) {
	tokens := patentTokens()
	orig := make([]model.OcrToken, len(tokens))
	copy(orig, tokens)

	v := New(tokens, DefaultThresholds())
	_, err := v.VerifyField("folio", "218", schema.ValueNumeric)
	require.NoError(t, err)
	assert.Equal(t, orig, tokens)
}
