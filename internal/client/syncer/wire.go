package syncer

import (
	"fmt"
	"strconv"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/client/client"
	"github.com/dmitrijs2005/gophnotes/internal/client/models"
	"github.com/dmitrijs2005/gophnotes/internal/common"
)

const syncOp = "POST " + common.RouteNotesSync

// The server id is stored locally as a decimal string and travels as an
// integer. Conversion happens only here.

func encodeServerID(localID string, id *string) (*int64, error) {
	if id == nil {
		return nil, nil
	}
	v, err := strconv.ParseInt(*id, 10, 64)
	if err != nil {
		return nil, &client.Error{
			Kind:    client.KindMalformed,
			Op:      syncOp,
			Message: fmt.Sprintf("note %s has non-numeric server id %q", localID, *id),
			Err:     err,
		}
	}
	return &v, nil
}

func decodeServerID(v int64) *string {
	s := strconv.FormatInt(v, 10)
	return &s
}

// toDTO converts a local note into its wire form.
func toDTO(n *models.Note) (api.NoteDTO, error) {
	id, err := encodeServerID(n.LocalID, n.ServerID)
	if err != nil {
		return api.NoteDTO{}, err
	}
	return api.NoteDTO{
		ClientID:     n.LocalID,
		Title:        n.Title,
		ShortPreview: models.ShortPreview(n.Body),
		FullContent:  n.Body,
		IsPinned:     n.IsPinned,
		IsDeleted:    n.IsDeleted,
		CreatedAt:    n.CreatedAt.UTC(),
		UpdatedAt:    n.UpdatedAt.UTC(),
		NoteID:       id,
	}, nil
}

// encodeBatch converts the whole snapshot. A single bad record fails the
// batch.
func encodeBatch(notes []*models.Note) (api.SyncRequest, error) {
	batch := make(api.SyncRequest, 0, len(notes))
	for _, n := range notes {
		dto, err := toDTO(n)
		if err != nil {
			return nil, err
		}
		batch = append(batch, dto)
	}
	return batch, nil
}

// fromDTO converts a response entry into the server-confirmed note. Tags are
// not part of the wire format and are left empty.
func fromDTO(d api.NoteDTO) (*models.Note, error) {
	if d.ClientID == "" {
		return nil, &client.Error{Kind: client.KindMalformed, Op: syncOp, Message: "response entry without clientId"}
	}
	n := &models.Note{
		LocalID:   d.ClientID,
		Title:     d.Title,
		Body:      d.FullContent,
		IsPinned:  d.IsPinned,
		IsDeleted: d.IsDeleted,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
	id, ok := d.ServerID()
	if ok {
		n.ServerID = decodeServerID(id)
	} else if !d.IsDeleted {
		return nil, &client.Error{
			Kind:    client.KindMalformed,
			Op:      syncOp,
			Message: fmt.Sprintf("response entry %s has no server id", d.ClientID),
		}
	}
	return n, nil
}

func decodeResponse(resp *api.SyncResponse) ([]*models.Note, error) {
	out := make([]*models.Note, 0, len(resp.Notes))
	for _, d := range resp.Notes {
		n, err := fromDTO(d)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
