package models

import "encoding/json"

// Флаги deliverable и is_active по умолчанию true: отсутствующее в импорте
// поле не должно блокировать пинкод или выключать склад.

func (p *Pincode) UnmarshalJSON(b []byte) error {
	type raw Pincode
	v := raw{Deliverable: true}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Pincode(v)
	return nil
}

func (w *Warehouse) UnmarshalJSON(b []byte) error {
	type raw Warehouse
	v := raw{IsActive: true}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*w = Warehouse(v)
	return nil
}

func (p *Product) UnmarshalJSON(b []byte) error {
	type raw Product
	v := raw{IsActive: true}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Product(v)
	return nil
}
