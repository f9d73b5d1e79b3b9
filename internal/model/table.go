package model

// TableStatus is the occupancy of a physical table.
type TableStatus string

const (
	TableAvailable TableStatus = "AVAILABLE"
	TableTaken     TableStatus = "TAKEN"
)

// Table is a physical table on the floor, identified by its number.
type Table struct {
	Number   int         // restaurant_tables.table_number
	Capacity int         // restaurant_tables.capacity
	Status   TableStatus // restaurant_tables.status
}
