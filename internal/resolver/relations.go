package resolver

import (
	"github.com/graphql-go/graphql"
)

func (r *Resolver) resolveTransactionBuilding(p graphql.ResolveParams) (interface{}, error) {
	tx, ok := p.Source.(*Transaction)
	if !ok {
		return nil, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	buildingID := tx.BuildingID
	thunk := l.buildings.Load(p.Context, buildingID)
	return func() (interface{}, error) {
		b, err := thunk()
		if err != nil {
			return nil, err
		}
		if b == nil {
			return nil, missingRow("Transaction.building", buildingID)
		}
		return b, nil
	}, nil
}

func (r *Resolver) resolveCorporationRef(key func(*Transaction) *int64) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		tx, ok := p.Source.(*Transaction)
		if !ok {
			return nil, nil
		}
		id := key(tx)
		if id == nil {
			return nil, nil
		}
		l, err := r.loaders(p.Context)
		if err != nil {
			return nil, err
		}
		return optional(l.corporations.Load(p.Context, *id)), nil
	}
}

func (r *Resolver) resolveBuyerHistory(p graphql.ResolveParams) (interface{}, error) {
	tx, ok := p.Source.(*Transaction)
	if !ok {
		return nil, nil
	}
	if tx.BuyerID == nil {
		return []*PriceHistory{}, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	key := historyKey{BuildingID: tx.BuildingID, CorporationID: *tx.BuyerID}
	return list(l.buyerHistories.Load(p.Context, key)), nil
}

func (r *Resolver) resolveBuildingPrefecture(p graphql.ResolveParams) (interface{}, error) {
	b, ok := p.Source.(*Building)
	if !ok {
		return nil, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	prefectureID := b.PrefectureID
	thunk := l.prefectures.Load(p.Context, prefectureID)
	return func() (interface{}, error) {
		pref, err := thunk()
		if err != nil {
			return nil, err
		}
		if pref == nil {
			return nil, missingRow("Building.prefecture", prefectureID)
		}
		return pref, nil
	}, nil
}

func (r *Resolver) resolveBuildingAppraisal(p graphql.ResolveParams) (interface{}, error) {
	b, ok := p.Source.(*Building)
	if !ok {
		return nil, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	return optional(l.appraisals.Load(p.Context, b.ID)), nil
}

func (r *Resolver) resolveBuildingPriceHistories(p graphql.ResolveParams) (interface{}, error) {
	b, ok := p.Source.(*Building)
	if !ok {
		return nil, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	return list(l.priceHistories.Load(p.Context, b.ID)), nil
}

func (r *Resolver) resolveBuildingTransactions(p graphql.ResolveParams) (interface{}, error) {
	b, ok := p.Source.(*Building)
	if !ok {
		return nil, nil
	}
	l, err := r.loaders(p.Context)
	if err != nil {
		return nil, err
	}
	return list(l.transactionsByBuilding.Load(p.Context, b.ID)), nil
}
