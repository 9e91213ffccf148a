package receipt

import (
	"errors"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	Describe("SaveReceipt", func() {
		var (
			receipt *Receipt
			err     error
		)

		BeforeEach(func() {
			total := 25.99
			receipt = &Receipt{
				ID:        "test-id",
				Filename:  "test.jpg",
				Merchant:  "Test Merchant",
				Date:      "2024-01-15",
				Total:     &total,
				CreatedAt: time.Now(),
				UpdatedAt: time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveReceipt(receipt)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the receipt to the database", func() {
				saved, getErr := db.GetReceipt("test-id")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("test-id"))
			})
		})
	})

	Describe("GetReceipt", func() {
		var (
			receiptID string
			receipt   *Receipt
			err       error
		)

		JustBeforeEach(func() {
			receipt, err = db.GetReceipt(receiptID)
		})

		When("receipt exists", func() {
			BeforeEach(func() {
				receiptID = "test-id"
				total := 25.99
				tax := 2.08
				testReceipt := &Receipt{
					ID:       "test-id",
					Filename: "test.jpg",
					Merchant: "Test Merchant",
					Date:     "2024-01-15",
					Total:    &total,
					Tax:      &tax,
					Items: []Item{
						{Line: "Coffee $3.50", Amount: "3.50"},
					},
					RawText:   "Test Merchant\nCoffee $3.50\nTotal: $25.99",
					TripID:    "trip-1",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveReceipt(testReceipt)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct receipt ID", func() {
				Expect(receipt.ID).To(Equal("test-id"))
			})

			It("should return the correct merchant", func() {
				Expect(receipt.Merchant).To(Equal("Test Merchant"))
			})

			It("should return the correct total", func() {
				Expect(receipt.Total).To(HaveValue(Equal(25.99)))
			})

			It("should return the line items", func() {
				Expect(receipt.Items).To(Equal([]Item{
					{Line: "Coffee $3.50", Amount: "3.50"},
				}))
			})

			It("should return the trip assignment", func() {
				Expect(receipt.TripID).To(Equal("trip-1"))
			})
		})

		When("receipt has no read amounts", func() {
			BeforeEach(func() {
				receiptID = "blank-id"
				testReceipt := &Receipt{
					ID:        "blank-id",
					Filename:  "blank.jpg",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveReceipt(testReceipt)).NotTo(HaveOccurred())
			})

			It("should keep the total unset", func() {
				Expect(receipt.Total).To(BeNil())
			})

			It("should keep the tax unset", func() {
				Expect(receipt.Tax).To(BeNil())
			})
		})

		When("receipt does not exist", func() {
			var expectedErr error

			BeforeEach(func() {
				receiptID = "nonexistent"
				expectedErr = errors.New("receipt not found: nonexistent")
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(expectedErr))
			})
		})
	})

	Describe("ListReceipts", func() {
		var (
			receipts []*Receipt
			err      error
		)

		JustBeforeEach(func() {
			receipts, err = db.ListReceipts()
		})

		When("receipts exist", func() {
			BeforeEach(func() {
				receipt1 := &Receipt{
					ID:        "id1",
					Merchant:  "Merchant 1",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				receipt2 := &Receipt{
					ID:        "id2",
					Merchant:  "Merchant 2",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveReceipt(receipt1)).NotTo(HaveOccurred())
				Expect(db.SaveReceipt(receipt2)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all receipts", func() {
				Expect(receipts).To(HaveLen(2))
			})
		})

		When("no receipts exist", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an empty list", func() {
				Expect(receipts).To(BeEmpty())
			})
		})
	})

	Describe("DeleteReceipt", func() {
		var (
			receiptID string
			err       error
		)

		JustBeforeEach(func() {
			err = db.DeleteReceipt(receiptID)
		})

		When("receipt exists", func() {
			BeforeEach(func() {
				receiptID = "test-id"
				receipt := &Receipt{
					ID:        "test-id",
					Merchant:  "Test",
					CreatedAt: time.Now(),
					UpdatedAt: time.Now(),
				}
				Expect(db.SaveReceipt(receipt)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the receipt from the database", func() {
				_, getErr := db.GetReceipt("test-id")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("receipt does not exist", func() {
			BeforeEach(func() {
				receiptID = "nonexistent"
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})

	Describe("Close", func() {
		It("should not return an error", func() {
			err := db.Close()
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("SaveTrip", func() {
		var (
			trip *Trip
			err  error
		)

		BeforeEach(func() {
			trip = &Trip{
				ID:        "trip-1",
				Name:      "Portland 2024",
				CreatedAt: time.Now(),
			}
		})

		JustBeforeEach(func() {
			err = db.SaveTrip(trip)
		})

		When("saving succeeds", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should save the trip to the database", func() {
				saved, getErr := db.GetTrip("trip-1")
				Expect(getErr).NotTo(HaveOccurred())
				Expect(saved.ID).To(Equal("trip-1"))
			})
		})
	})

	Describe("GetTrip", func() {
		var (
			tripID string
			trip   *Trip
			err    error
		)

		JustBeforeEach(func() {
			trip, err = db.GetTrip(tripID)
		})

		When("trip exists", func() {
			BeforeEach(func() {
				tripID = "trip-1"
				testTrip := &Trip{
					ID:        "trip-1",
					Name:      "Portland 2024",
					CreatedAt: time.Now(),
				}
				Expect(db.SaveTrip(testTrip)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return the correct trip ID", func() {
				Expect(trip.ID).To(Equal("trip-1"))
			})

			It("should return the correct trip name", func() {
				Expect(trip.Name).To(Equal("Portland 2024"))
			})
		})

		When("trip does not exist", func() {
			var expectedErr error

			BeforeEach(func() {
				tripID = "nonexistent"
				expectedErr = errors.New("trip not found: nonexistent")
			})

			It("returns the error", func() {
				Expect(err).To(MatchError(expectedErr))
			})
		})
	})

	Describe("ListTrips", func() {
		var (
			trips []*Trip
			err   error
		)

		JustBeforeEach(func() {
			trips, err = db.ListTrips()
		})

		When("trips exist", func() {
			BeforeEach(func() {
				trip1 := &Trip{
					ID:        "trip-1",
					Name:      "Portland 2024",
					CreatedAt: time.Now(),
				}
				trip2 := &Trip{
					ID:        "trip-2",
					Name:      "Vancouver 2024",
					CreatedAt: time.Now(),
				}
				Expect(db.SaveTrip(trip1)).NotTo(HaveOccurred())
				Expect(db.SaveTrip(trip2)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return all trips", func() {
				Expect(trips).To(HaveLen(2))
			})
		})

		When("no trips exist", func() {
			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should return an empty list", func() {
				Expect(trips).To(BeEmpty())
			})
		})
	})

	Describe("DeleteTrip", func() {
		var (
			tripID string
			err    error
		)

		JustBeforeEach(func() {
			err = db.DeleteTrip(tripID)
		})

		When("trip exists", func() {
			BeforeEach(func() {
				tripID = "trip-1"
				trip := &Trip{
					ID:        "trip-1",
					Name:      "Portland 2024",
					CreatedAt: time.Now(),
				}
				Expect(db.SaveTrip(trip)).NotTo(HaveOccurred())
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})

			It("should remove the trip from the database", func() {
				_, getErr := db.GetTrip("trip-1")
				Expect(getErr).To(HaveOccurred())
			})
		})

		When("trip does not exist", func() {
			BeforeEach(func() {
				tripID = "nonexistent"
			})

			It("should not return an error", func() {
				Expect(err).NotTo(HaveOccurred())
			})
		})
	})
})
