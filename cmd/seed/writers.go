package main

import (
	"agritrace.io/agritrace/internal/domain"
	"agritrace.io/agritrace/internal/repository/memory"
	"agritrace.io/agritrace/internal/usecase"
)

type writers struct {
	empresas        *usecase.EntityWriter[*domain.Empresa]
	fincas          *usecase.EntityWriter[*domain.Finca]
	certificaciones *usecase.EntityWriter[*domain.Certificacion]
	lotes           *usecase.EntityWriter[*domain.Lote]
	cosechas        *usecase.EntityWriter[*domain.Cosecha]
	recepciones     *usecase.EntityWriter[*domain.Recepcion]
	clasificaciones *usecase.EntityWriter[*domain.Clasificacion]
	pallets         *usecase.EntityWriter[*domain.Pallet]
	etiquetas       *usecase.EntityWriter[*domain.Etiqueta]
	envios          *usecase.EntityWriter[*domain.Envio]
}

func newWriters(hooks domain.LifecycleListener) *writers {
	return &writers{
		empresas:        newWriter(hooks, func() *domain.Empresa { return &domain.Empresa{} }, func(e *domain.Empresa, id int64) { e.ID = id }),
		fincas:          newWriter(hooks, func() *domain.Finca { return &domain.Finca{} }, func(e *domain.Finca, id int64) { e.ID = id }),
		certificaciones: newWriter(hooks, func() *domain.Certificacion { return &domain.Certificacion{} }, func(e *domain.Certificacion, id int64) { e.ID = id }),
		lotes:           newWriter(hooks, func() *domain.Lote { return &domain.Lote{} }, func(e *domain.Lote, id int64) { e.ID = id }),
		cosechas:        newWriter(hooks, func() *domain.Cosecha { return &domain.Cosecha{} }, func(e *domain.Cosecha, id int64) { e.ID = id }),
		recepciones:     newWriter(hooks, func() *domain.Recepcion { return &domain.Recepcion{} }, func(e *domain.Recepcion, id int64) { e.ID = id }),
		clasificaciones: newWriter(hooks, func() *domain.Clasificacion { return &domain.Clasificacion{} }, func(e *domain.Clasificacion, id int64) { e.ID = id }),
		pallets:         newWriter(hooks, func() *domain.Pallet { return &domain.Pallet{} }, func(e *domain.Pallet, id int64) { e.ID = id }),
		etiquetas:       newWriter(hooks, func() *domain.Etiqueta { return &domain.Etiqueta{} }, func(e *domain.Etiqueta, id int64) { e.ID = id }),
		envios:          newWriter(hooks, func() *domain.Envio { return &domain.Envio{} }, func(e *domain.Envio, id int64) { e.ID = id }),
	}
}

func newWriter[E domain.Entity](hooks domain.LifecycleListener, newEntity func() E, assignID func(E, int64)) *usecase.EntityWriter[E] {
	return usecase.NewEntityWriter[E](memory.NewEntities(newEntity, assignID), hooks)
}
